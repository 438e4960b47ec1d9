package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Membership tiers.
const (
	MembershipStudentUG     = "student-ug"
	MembershipStudentPG     = "student-pg"
	MembershipAcademic      = "academic"
	MembershipIndustry      = "industry"
	MembershipInternational = "international"
)

// DefaultCurrency is the currency of the built-in fee table.
const DefaultCurrency = "INR"

var defaultFees = map[string]int{
	MembershipStudentUG:     250,
	MembershipStudentPG:     350,
	MembershipAcademic:      500,
	MembershipIndustry:      750,
	MembershipInternational: 600,
}

// legacy tier names still sent by older clients
var membershipAliases = map[string]string{
	"student":      MembershipStudentUG,
	"professional": MembershipAcademic,
	"corporate":    MembershipIndustry,
}

// TierDescriptor is the public description of a tier.
type TierDescriptor struct {
	Label       string   `json:"label" yaml:"label"`
	Description string   `json:"description" yaml:"description"`
	Duration    string   `json:"duration" yaml:"duration"`
	Benefits    []string `json:"benefits" yaml:"benefits"`
}

// MembershipTier is a tier with its fee, as listed to prospective members.
type MembershipTier struct {
	Value string `json:"value"`
	TierDescriptor
	Fee int `json:"fee"`
}

const defaultTierDuration = "1 Year"

var defaultTierOrder = []string{
	MembershipStudentUG,
	MembershipStudentPG,
	MembershipAcademic,
	MembershipIndustry,
	MembershipInternational,
}

var defaultTierDescriptors = map[string]TierDescriptor{
	MembershipStudentUG: {
		Label:       "Student Membership (UG)",
		Description: "For Undergraduate Students",
		Benefits: []string{
			"Access to research papers",
			"Student networking events",
			"Basic cybersecurity resources",
			"Monthly newsletter",
		},
	},
	MembershipStudentPG: {
		Label:       "Student Membership (PG)",
		Description: "For Postgraduate/Masters Students",
		Benefits: []string{
			"All UG benefits",
			"Advanced research access",
			"Conference discounts",
			"Mentorship opportunities",
		},
	},
	MembershipAcademic: {
		Label:       "Academic Membership",
		Description: "For Faculty, Researchers & Academics",
		Benefits: []string{
			"All student benefits",
			"Professional certification",
			"Research collaboration platform",
			"Priority conference registration",
			"Publication opportunities",
		},
	},
	MembershipIndustry: {
		Label:       "Industry Membership",
		Description: "For Industry Professionals",
		Benefits: []string{
			"All professional benefits",
			"Industry networking events",
			"Advanced research access",
			"Career development resources",
			"Priority support",
			"Custom research reports",
		},
	},
	MembershipInternational: {
		Label:       "International Membership",
		Description: "For Non-Indian Residents (Global)",
		Benefits: []string{
			"All core benefits",
			"Global networking access",
			"Virtual conference participation",
			"International collaboration platform",
			"Regional support",
		},
	},
}

// FeeTable maps membership tiers to annual fees. It is immutable once built.
type FeeTable struct {
	fees     map[string]int
	tiers    map[string]TierDescriptor
	currency string
}

// DefaultFeeTable returns the built-in fee schedule.
func DefaultFeeTable() *FeeTable {
	t, _ := NewFeeTable(defaultFees, DefaultCurrency)
	return t
}

// NewFeeTable builds a fee table with the built-in tier descriptions. Every
// fee must be positive.
func NewFeeTable(fees map[string]int, currency string) (*FeeTable, error) {
	return NewDescribedFeeTable(fees, currency, nil)
}

// NewDescribedFeeTable builds a fee table. Descriptors override the built-in
// description of a tier field by field; a descriptor for a tier without a fee
// is an error.
func NewDescribedFeeTable(fees map[string]int, currency string, descriptors map[string]TierDescriptor) (*FeeTable, error) {
	if len(fees) == 0 {
		return nil, fmt.Errorf("fee table is empty")
	}
	copied := make(map[string]int, len(fees))
	for k, v := range fees {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || v <= 0 {
			return nil, fmt.Errorf("invalid fee entry %q: %d", k, v)
		}
		copied[key] = v
	}

	tiers := make(map[string]TierDescriptor, len(copied))
	for key := range copied {
		d, ok := defaultTierDescriptors[key]
		if !ok {
			d = TierDescriptor{Label: key}
		}
		tiers[key] = d
	}
	for k, override := range descriptors {
		key := strings.ToLower(strings.TrimSpace(k))
		d, ok := tiers[key]
		if !ok {
			return nil, fmt.Errorf("description for unknown tier %q", k)
		}
		if override.Label != "" {
			d.Label = override.Label
		}
		if override.Description != "" {
			d.Description = override.Description
		}
		if override.Duration != "" {
			d.Duration = override.Duration
		}
		if len(override.Benefits) > 0 {
			d.Benefits = append([]string(nil), override.Benefits...)
		}
		tiers[key] = d
	}
	for key, d := range tiers {
		if d.Duration == "" {
			d.Duration = defaultTierDuration
		}
		if d.Benefits == nil {
			d.Benefits = []string{}
		}
		tiers[key] = d
	}

	if currency == "" {
		currency = DefaultCurrency
	}
	return &FeeTable{fees: copied, tiers: tiers, currency: currency}, nil
}

// Normalize maps legacy aliases to current tiers and reports whether the
// result is a tier of this table.
func (t *FeeTable) Normalize(raw string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := membershipAliases[key]; ok {
		key = alias
	}
	_, ok := t.fees[key]
	return key, ok
}

// Fee returns the fee of a normalized tier.
func (t *FeeTable) Fee(membershipType string) (int, bool) {
	fee, ok := t.fees[membershipType]
	return fee, ok
}

// Currency returns the currency code the fees are expressed in.
func (t *FeeTable) Currency() string { return t.currency }

// Types returns the tiers in stable order.
func (t *FeeTable) Types() []string {
	out := make([]string, 0, len(t.fees))
	for k := range t.fees {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Tiers lists every tier with its description and fee. Built-in tiers keep
// their usual order; other tiers follow alphabetically.
func (t *FeeTable) Tiers() []MembershipTier {
	out := make([]MembershipTier, 0, len(t.fees))
	seen := make(map[string]bool, len(t.fees))
	add := func(key string) {
		d := t.tiers[key]
		d.Benefits = append([]string{}, d.Benefits...)
		out = append(out, MembershipTier{Value: key, TierDescriptor: d, Fee: t.fees[key]})
		seen[key] = true
	}
	for _, key := range defaultTierOrder {
		if _, ok := t.fees[key]; ok {
			add(key)
		}
	}
	for _, key := range t.Types() {
		if !seen[key] {
			add(key)
		}
	}
	return out
}

// All returns a copy of the schedule.
func (t *FeeTable) All() map[string]int {
	out := make(map[string]int, len(t.fees))
	for k, v := range t.fees {
		out[k] = v
	}
	return out
}

// ResolveFee parses a caller supplied fee and falls back to the table when the
// input is absent or unparseable.
func (t *FeeTable) ResolveFee(input FeeInput, membershipType string) int {
	if input.Set {
		if fee, ok := parseFee(input.Raw); ok {
			return fee
		}
	}
	fee, _ := t.Fee(membershipType)
	return fee
}

var (
	feeNoise  = strings.NewReplacer("₹", "", "$", "", ",", "", " ", "", "\t", "", "\n", "")
	feeNumber = regexp.MustCompile(`^\d+(\.\d+)?`)
)

// parseFee accepts "750", "₹750", "$ 1,200.50" and similar. The leading
// numeric prefix is truncated to whole units and must be at least 1.
func parseFee(raw string) (int, bool) {
	cleaned := feeNoise.Replace(strings.TrimSpace(raw))
	match := feeNumber.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || v < 1 || v > math.MaxInt32 {
		return 0, false
	}
	return int(v), true
}

// FeeInput is a fee field that accepts either a JSON number or a string.
type FeeInput struct {
	Raw string
	Set bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FeeInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = FeeInput{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FeeInput{Raw: s, Set: strings.TrimSpace(s) != ""}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("membershipFee must be a number or string: %w", err)
	}
	*f = FeeInput{Raw: n.String(), Set: true}
	return nil
}

// FeeOf builds a FeeInput from a string, for callers outside JSON decoding.
func FeeOf(raw string) FeeInput {
	return FeeInput{Raw: raw, Set: raw != ""}
}
