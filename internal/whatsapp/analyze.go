package whatsapp

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/waflow/waflow/internal/model"
)

var bodyPlaceholderRe = regexp.MustCompile(`\{\{(\d+)\}\}`)

// ButtonParameter marks a URL button whose link carries a variable.
type ButtonParameter struct {
	Index   int    `json:"index"`
	Type    string `json:"type"`
	SubType string `json:"sub_type"`
}

// Analysis is the derived shape of a provider template: which inputs a
// sender must supply to render it.
type Analysis struct {
	Name                string
	Language            string
	Description         string
	BodyParameters      model.TemplateParameters
	ButtonParameters    []ButtonParameter
	HasHeader           bool
	HeaderType          string
	HeaderRequiresParam bool
}

// AnalyzeTemplate scans a template's components for the placeholders the
// Cloud API requires values for. Body placeholders are deduplicated and
// sorted numerically so {{10}} orders after {{2}}. A TEXT header needs a
// parameter only when its text contains {{1}}; media and location headers
// always do.
func AnalyzeTemplate(name, language string, components model.TemplateComponents) Analysis {
	result := Analysis{
		Name:     name,
		Language: language,
	}
	if result.Language == "" {
		result.Language = "en_US"
	}

	for _, component := range components {
		switch component.Type {
		case "HEADER":
			result.HasHeader = true
			result.HeaderType = component.Format
			switch component.Format {
			case model.HeaderFormatText:
				result.HeaderRequiresParam = strings.Contains(component.Text, "{{1}}")
			case model.HeaderFormatImage, model.HeaderFormatVideo, model.HeaderFormatDocument, model.HeaderFormatLocation:
				result.HeaderRequiresParam = true
			}

		case "BODY":
			if component.Text == "" {
				continue
			}
			result.Description = component.Text
			if len(result.Description) > 200 {
				result.Description = result.Description[:200] + "..."
			}
			for _, match := range bodyPlaceholderRe.FindAllStringSubmatch(component.Text, -1) {
				key := match[1]
				if result.BodyParameters.Contains(key) {
					continue
				}
				result.BodyParameters = append(result.BodyParameters, model.TemplateParameter{
					Key:  key,
					Name: fmt.Sprintf("Parameter %s", key),
				})
			}

		case "BUTTONS":
			for i, button := range component.Buttons {
				if button.Type == "URL" && strings.Contains(button.URL, "{{") {
					result.ButtonParameters = append(result.ButtonParameters, ButtonParameter{
						Index:   i,
						Type:    "url_variable",
						SubType: "url",
					})
				}
			}
		}
	}

	sort.Slice(result.BodyParameters, func(i, j int) bool {
		a, _ := strconv.Atoi(result.BodyParameters[i].Key)
		b, _ := strconv.Atoi(result.BodyParameters[j].Key)
		return a < b
	})

	return result
}
