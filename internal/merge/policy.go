package merge

import (
	"fmt"
	"sort"
	"strings"

	"artdedup/internal/services"
	"artdedup/internal/store"
)

// Choice selects where a merged field comes from.
type Choice string

const (
	UseSource Choice = "use_source"
	UseTarget Choice = "use_target"
	// Combine joins both values; free-text fields only.
	Combine Choice = "combine"
)

// ParseChoice validates a choice name.
func ParseChoice(value string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(value))); c {
	case UseSource, UseTarget, Combine:
		return c, nil
	}
	return "", services.Wrap(services.ErrInvalidFieldPolicy, "merge", "parse policy", fmt.Sprintf("unknown choice %q", value), nil)
}

// Policy maps field names to choices. Unlisted fields keep the target's value.
type Policy map[string]Choice

// ParsePolicy builds a policy from raw field and choice names.
func ParsePolicy(raw map[string]string) (Policy, error) {
	p := make(Policy, len(raw))
	for name, value := range raw {
		c, err := ParseChoice(value)
		if err != nil {
			return nil, err
		}
		p[strings.ToLower(strings.TrimSpace(name))] = c
	}
	return p, p.Validate()
}

// Validate rejects unknown fields, unknown choices and combine on fields
// that are not free text.
func (p Policy) Validate() error {
	for _, name := range p.names() {
		f, ok := fieldIndex[name]
		if !ok {
			return services.Wrap(services.ErrInvalidFieldPolicy, "merge", "validate policy", fmt.Sprintf("unknown field %q", name), nil)
		}
		switch p[name] {
		case UseSource, UseTarget:
		case Combine:
			if !f.freeText {
				return services.Wrap(services.ErrInvalidFieldPolicy, "merge", "validate policy",
					fmt.Sprintf("field %q is not free text and cannot be combined", name), nil)
			}
		default:
			return services.Wrap(services.ErrInvalidFieldPolicy, "merge", "validate policy",
				fmt.Sprintf("unknown choice %q for field %q", p[name], name), nil)
		}
	}
	return nil
}

func (p Policy) choice(name string) Choice {
	if c, ok := p[name]; ok {
		return c
	}
	return UseTarget
}

func (p Policy) names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Strings returns the policy as plain strings for the audit log.
func (p Policy) Strings() map[string]string {
	out := make(map[string]string, len(p))
	for name, c := range p {
		out[name] = string(c)
	}
	return out
}

// field is one mergeable artwork attribute.
type field struct {
	name     string
	freeText bool
	take     func(dst, src *store.Artwork)
	same     func(a, b *store.Artwork) bool
	text     func(*store.Artwork) *string
}

func textField(name string, freeText bool, text func(*store.Artwork) *string) field {
	return field{
		name:     name,
		freeText: freeText,
		take:     func(dst, src *store.Artwork) { *text(dst) = *text(src) },
		same:     func(a, b *store.Artwork) bool { return *text(a) == *text(b) },
		text:     text,
	}
}

var fields = []field{
	textField("title", false, func(a *store.Artwork) *string { return &a.Title }),
	{
		name: "year",
		take: func(dst, src *store.Artwork) {
			dst.Year = nil
			if src.Year != nil {
				y := *src.Year
				dst.Year = &y
			}
			dst.YearCirca = src.YearCirca
		},
		same: func(a, b *store.Artwork) bool {
			if (a.Year == nil) != (b.Year == nil) || a.YearCirca != b.YearCirca {
				return false
			}
			return a.Year == nil || *a.Year == *b.Year
		},
	},
	textField("medium", false, func(a *store.Artwork) *string { return &a.Medium }),
	textField("dimensions", false, func(a *store.Artwork) *string { return &a.Dimensions }),
	textField("art_type", false, func(a *store.Artwork) *string { return &a.ArtType }),
	textField("signed", false, func(a *store.Artwork) *string { return &a.Signed }),
	textField("source_platform", false, func(a *store.Artwork) *string { return &a.SourcePlatform }),
	textField("source_url", false, func(a *store.Artwork) *string { return &a.SourceURL }),
	textField("catalog_number", false, func(a *store.Artwork) *string { return &a.CatalogNumber }),
	textField("description", true, func(a *store.Artwork) *string { return &a.Description }),
	textField("inscription", true, func(a *store.Artwork) *string { return &a.Inscription }),
	textField("provenance", true, func(a *store.Artwork) *string { return &a.Provenance }),
	textField("exhibition_history", true, func(a *store.Artwork) *string { return &a.ExhibitionHistory }),
	textField("literature", true, func(a *store.Artwork) *string { return &a.Literature }),
	textField("condition", true, func(a *store.Artwork) *string { return &a.Condition }),
	textField("notes", true, func(a *store.Artwork) *string { return &a.Notes }),
}

var fieldIndex = func() map[string]field {
	idx := make(map[string]field, len(fields))
	for _, f := range fields {
		idx[f.name] = f
	}
	return idx
}()

// FieldInfo describes a mergeable field.
type FieldInfo struct {
	Name     string
	FreeText bool
}

// Fields lists every mergeable field in declaration order.
func Fields() []FieldInfo {
	out := make([]FieldInfo, len(fields))
	for i, f := range fields {
		out[i] = FieldInfo{Name: f.name, FreeText: f.freeText}
	}
	return out
}

// Separator joins combined free-text values.
const Separator = "\n\n"

// combineText keeps the non-empty paragraphs of target then source, dropping
// exact repeats.
func combineText(target, source string) string {
	seen := make(map[string]struct{})
	var parts []string
	for _, value := range []string{target, source} {
		for _, part := range strings.Split(value, Separator) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, Separator)
}

// apply computes the merged record without touching target or source and
// returns the names of fields whose value differs from target.
func apply(target, source *store.Artwork, policy Policy) (*store.Artwork, []string) {
	merged := *target
	if target.Year != nil {
		y := *target.Year
		merged.Year = &y
	}
	var changed []string
	for _, f := range fields {
		switch policy.choice(f.name) {
		case UseTarget:
			continue
		case UseSource:
			f.take(&merged, source)
		case Combine:
			*f.text(&merged) = combineText(*f.text(target), *f.text(source))
		}
		if !f.same(&merged, target) {
			changed = append(changed, f.name)
		}
	}
	return &merged, changed
}
