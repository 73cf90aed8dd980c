package analyze

import (
	"strings"
	"time"
)

// cropEntry is regional agronomy knowledge injected into the prompt when
// the declared category or identified species matches a known crop.
type cropEntry struct {
	Name       string
	Aliases    []string // category labels, common and scientific names
	Varietals  string
	Regional   string
	Diseases   string
	Deficiency string
}

// Knowledge base for the crops the advisory frontend targets. Matching is
// case-insensitive on name and aliases.
var cropKnowledge = []cropEntry{
	{
		Name:       "Banana",
		Aliases:    []string{"pisang", "musa", "musa acuminata", "musa balbisiana"},
		Varietals:  "Common Malaysian varietals: Pisang Berangan, Pisang Mas, Pisang Awak, Cavendish.",
		Regional:   "Grown year-round in lowland smallholdings; waterlogging after monsoon rain is a frequent stressor.",
		Diseases:   "Watch for Panama disease (Fusarium wilt TR4), Sigatoka leaf spot, banana blood disease and bunchy top virus.",
		Deficiency: "Potassium deficiency shows as yellow-orange leaf margins on older leaves; magnesium deficiency as yellowing between veins. Common correctives: NPK 12:12:17:2+TE, muriate of potash (MOP), kieserite.",
	},
	{
		Name:       "Rice",
		Aliases:    []string{"padi", "paddy", "oryza", "oryza sativa"},
		Varietals:  "Common varietals: MR219, MR220, MR297, fragrant MRQ76.",
		Regional:   "Granary areas double-crop around the monsoon calendar; standing water management drives most nutrient issues.",
		Diseases:   "Watch for rice blast, bacterial leaf blight, sheath blight, brown planthopper damage and tungro virus.",
		Deficiency: "Nitrogen deficiency shows as pale, stunted tillers; zinc deficiency as bronzing in young seedlings. Common correctives: urea (46-0-0), NPK 17:3:25, zinc sulphate.",
	},
	{
		Name:       "Chili",
		Aliases:    []string{"chilli", "cili", "capsicum", "capsicum annuum", "cili padi"},
		Varietals:  "Common varietals: Kulai chili, cili padi (bird's eye), Hot Beauty F1.",
		Regional:   "Fertigation-grown under rain shelter in many farms; fruiting drops sharply in prolonged wet spells.",
		Diseases:   "Watch for anthracnose fruit rot, bacterial wilt, chili veinal mottle virus, thrips and broad mite damage.",
		Deficiency: "Calcium deficiency causes blossom end rot; magnesium deficiency interveinal yellowing on older leaves. Common correctives: calcium nitrate, NPK 15:15:15, foliar Epsom salt.",
	},
	{
		Name:       "Durian",
		Aliases:    []string{"durio", "durio zibethinus", "musang king", "d24"},
		Varietals:  "Common varietals: Musang King (D197), D24, Black Thorn (D200), IOI.",
		Regional:   "Hillside orchards; flowering is triggered by dry spells, so irregular monsoons disrupt fruit set.",
		Diseases:   "Watch for Phytophthora patch canker and root rot, stem borers and leaf blight.",
		Deficiency: "Potassium and boron deficiencies reduce fruit quality; boron deficiency shows as deformed young leaves. Common correctives: NPK 12:12:17:2, borax, well-rotted chicken manure.",
	},
	{
		Name:       "Papaya",
		Aliases:    []string{"betik", "carica", "carica papaya"},
		Varietals:  "Common varietals: Eksotika, Eksotika II, Sekaki.",
		Regional:   "Short-lived plantings on raised beds; dieback epidemics have made sanitation critical.",
		Diseases:   "Watch for papaya dieback (Erwinia), ringspot virus, anthracnose and powdery mildew.",
		Deficiency: "Boron deficiency causes bumpy latex-streaked fruit; nitrogen deficiency uniform pale leaves. Common correctives: NPK 15:15:15, borax, compost mulch.",
	},
	{
		Name:       "Oil Palm",
		Aliases:    []string{"kelapa sawit", "sawit", "elaeis", "elaeis guineensis"},
		Varietals:  "Plantings are tenera (dura x pisifera) hybrids from certified seed producers.",
		Regional:   "Estate and smallholder plantings; ganoderma pressure rises on replanted coastal soils.",
		Diseases:   "Watch for Ganoderma basal stem rot, rhinoceros beetle damage and bagworm defoliation.",
		Deficiency: "Magnesium deficiency shows as orange older fronds (confluent orange spotting); boron as hooked leaflets. Common correctives: kieserite, NPK 12:12:17:2, borate fertilizer.",
	},
}

// lookupCrop matches a category label or species name to a knowledge entry.
func lookupCrop(candidates ...string) *cropEntry {
	for _, c := range candidates {
		needle := strings.ToLower(strings.TrimSpace(c))
		if needle == "" {
			continue
		}
		for i := range cropKnowledge {
			entry := &cropKnowledge[i]
			if strings.ToLower(entry.Name) == needle {
				return entry
			}
			for _, alias := range entry.Aliases {
				if alias == needle || strings.Contains(needle, alias) {
					return entry
				}
			}
		}
	}
	return nil
}

// seasonNote maps the calendar month to one of the three monsoon regimes
// relevant to the region's growing calendar.
func seasonNote(month time.Month) string {
	switch month {
	case time.November, time.December, time.January, time.February, time.March:
		return "Current season: northeast monsoon (wet season on the east coast). Heavy rain favors fungal and bacterial disease; waterlogging and leaching of nutrients are common."
	case time.May, time.June, time.July, time.August, time.September:
		return "Current season: southwest monsoon (relatively drier). Heat and water stress symptoms are more likely; irrigation scheduling matters."
	default: // April, October
		return "Current season: inter-monsoon transition. Convective storms and high humidity favor rapid spread of leaf diseases."
	}
}
