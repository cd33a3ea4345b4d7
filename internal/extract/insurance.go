package extract

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/textgen"
)

// Insurance is a partial set of coverage details.
type Insurance struct {
	Carrier     string `json:"carrier,omitempty"`
	MemberID    string `json:"member_id,omitempty"`
	GroupNumber string `json:"group_number,omitempty"`
}

func (i Insurance) Complete() bool {
	return i.Carrier != "" && i.MemberID != "" && i.GroupNumber != ""
}

func (i Insurance) Empty() bool {
	return i.Carrier == "" && i.MemberID == "" && i.GroupNumber == ""
}

func (i *Insurance) Merge(o Insurance) {
	if o.Carrier != "" {
		i.Carrier = o.Carrier
	}
	if o.MemberID != "" {
		i.MemberID = o.MemberID
	}
	if o.GroupNumber != "" {
		i.GroupNumber = o.GroupNumber
	}
}

var carriers = []struct{ keyword, name string }{
	{"aetna", "Aetna"},
	{"blue cross", "Blue Cross"},
	{"bluecross", "Blue Cross"},
	{"cigna", "Cigna"},
	{"humana", "Humana"},
	{"unitedhealth", "UnitedHealthcare"},
	{"united health", "UnitedHealthcare"},
	{"kaiser", "Kaiser"},
	{"medicare", "Medicare"},
	{"medicaid", "Medicaid"},
	{"anthem", "Anthem"},
	{"bcbs", "BCBS"},
	{"bc/bs", "BCBS"},
}

var (
	memberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)member\s*(?:id|number|#)[:\s#]+([a-z0-9-]+)`),
		regexp.MustCompile(`(?i)\bid[:\s#]+([a-z0-9-]{6,})`),
	}
	groupPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)group\s*(?:number|no\.?|#)[:\s#]+([a-z0-9-]+)`),
		regexp.MustCompile(`(?i)\bgroup[:\s#]+([a-z0-9-]+)`),
	}
	carrierLabel = regexp.MustCompile(`(?i)(?:insurance carrier|insurance provider|carrier|provider|insurance)(?:\s+is)?\s*[:=]?\s+([a-z][a-z &.-]+?)(?:[,;\n]|\s+member|\s+group|$)`)
)

// InsuranceHeuristic applies the keyword and pattern rules only.
func InsuranceHeuristic(message string) Insurance {
	var out Insurance
	lower := strings.ToLower(message)
	for _, c := range carriers {
		if strings.Contains(lower, c.keyword) {
			out.Carrier = c.name
			break
		}
	}
	if out.Carrier == "" {
		if m := carrierLabel.FindStringSubmatch(message); m != nil {
			name := strings.TrimSpace(m[1])
			if !strings.EqualFold(name, "id") && len(name) > 2 {
				out.Carrier = titleWords(name)
			}
		}
	}
	for _, re := range memberPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			out.MemberID = strings.ToUpper(m[1])
			break
		}
	}
	for _, re := range groupPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			out.GroupNumber = strings.ToUpper(m[1])
			break
		}
	}
	return out
}

const insuranceRole = "You are a medical office assistant. Extract the insurance information from the patient's response. " +
	"Return only a JSON object with the fields InsuranceCarrier, MemberID and GroupNumber. " +
	"Use null for any field that is missing."

type modelInsurance struct {
	InsuranceCarrier *string `json:"InsuranceCarrier"`
	MemberID         *string `json:"MemberID"`
	GroupNumber      *string `json:"GroupNumber"`
}

// InsuranceExtractor tries the heuristics first and asks the model only
// when they find nothing at all.
type InsuranceExtractor struct {
	gen    textgen.Generator
	logger *logging.Logger
}

func NewInsuranceExtractor(gen textgen.Generator, logger *logging.Logger) *InsuranceExtractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &InsuranceExtractor{gen: gen, logger: logger}
}

func (e *InsuranceExtractor) Extract(ctx context.Context, message string) Insurance {
	out := InsuranceHeuristic(message)
	if !out.Empty() || e.gen == nil {
		return out
	}

	raw, err := e.gen.Generate(ctx, insuranceRole, "Patient response: "+message)
	if err != nil {
		e.logger.Warn("insurance extraction fell back to heuristics", "error", err)
		return out
	}
	parsed, ok := parseModelInsurance(raw)
	if !ok {
		e.logger.Warn("insurance extraction returned no JSON object")
		return out
	}
	return parsed
}

// parseModelInsurance reads the first JSON object in raw, tolerating code
// fences and chatter around it.
func parseModelInsurance(raw string) (Insurance, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Insurance{}, false
	}
	var m modelInsurance
	if err := json.Unmarshal([]byte(raw[start:end+1]), &m); err != nil {
		return Insurance{}, false
	}
	val := func(p *string) string {
		if p == nil {
			return ""
		}
		s := strings.TrimSpace(*p)
		if strings.EqualFold(s, "null") {
			return ""
		}
		return s
	}
	return Insurance{
		Carrier:     val(m.InsuranceCarrier),
		MemberID:    strings.ToUpper(val(m.MemberID)),
		GroupNumber: strings.ToUpper(val(m.GroupNumber)),
	}, true
}
