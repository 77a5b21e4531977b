package extraction

import (
	"errors"
	"fmt"
	"strings"
)

const (
	articlePlaceholder  = "{article}"
	businessPlaceholder = "{business}"
)

var ErrInvalidTemplate = errors.New("invalid prompt template")

// Templates holds the prompt of every extraction step.
type Templates struct {
	GeneralInfo        string
	BusinessCategory   string
	BusinessesInvolved string
	BusinessSpecific   string
}

func DefaultTemplates() Templates {
	const generic = "Extract structured information from the following article:\n{article}"
	return Templates{
		GeneralInfo:        generic,
		BusinessCategory:   generic,
		BusinessesInvolved: generic,
		BusinessSpecific:   "Extract structured information for the business '{business}' from the following article:\n{article}",
	}
}

// Validate checks every template for its required placeholders.
func (t Templates) Validate() error {
	var errs []error
	for _, tmpl := range []struct{ name, text string }{
		{"general_info", t.GeneralInfo},
		{"business_category", t.BusinessCategory},
		{"businesses_involved", t.BusinessesInvolved},
	} {
		if !strings.Contains(tmpl.text, articlePlaceholder) {
			errs = append(errs, fmt.Errorf("%w: %s must contain %s", ErrInvalidTemplate, tmpl.name, articlePlaceholder))
		}
	}
	if !strings.Contains(t.BusinessSpecific, articlePlaceholder) || !strings.Contains(t.BusinessSpecific, businessPlaceholder) {
		errs = append(errs, fmt.Errorf("%w: business_specific must contain %s and %s", ErrInvalidTemplate, articlePlaceholder, businessPlaceholder))
	}
	return errors.Join(errs...)
}

// FormatPrompt substitutes {article}. Any {business} placeholder is left
// as is.
func FormatPrompt(template, article string) (string, error) {
	if !strings.Contains(template, articlePlaceholder) {
		return "", fmt.Errorf("%w: prompt must contain placeholder %s", ErrInvalidTemplate, articlePlaceholder)
	}
	return strings.NewReplacer(articlePlaceholder, article).Replace(template), nil
}

// FormatBusinessPrompt substitutes {article} and {business} in one pass, so
// placeholder text inside the article is kept verbatim.
func FormatBusinessPrompt(template, article, business string) (string, error) {
	if !strings.Contains(template, articlePlaceholder) {
		return "", fmt.Errorf("%w: prompt must contain placeholder %s", ErrInvalidTemplate, articlePlaceholder)
	}
	if !strings.Contains(template, businessPlaceholder) {
		return "", fmt.Errorf("%w: prompt must contain placeholder %s", ErrInvalidTemplate, businessPlaceholder)
	}
	return strings.NewReplacer(articlePlaceholder, article, businessPlaceholder, business).Replace(template), nil
}
