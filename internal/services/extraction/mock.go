package extraction

import (
	"encoding/json"
	"net/http"

	"news-reader/internal/config"
	"news-reader/internal/services/llm"
)

// MockArticleInfo is the fixed result produced by the mock provider.
func MockArticleInfo() ArticleInfo {
	return ArticleInfo{
		Title:           "Mock title",
		Summary:         "Mock summary",
		IsAboutBusiness: true,
		BusinessInfo: []BusinessSpecificInfo{{
			Business:          "Mock business",
			StockPriceChange:  StockPriceIncrease,
			Reason:            "Mock reason",
			RelevantSubstring: "Mock substring",
		}},
	}
}

// MockResponses are the canned answers, keyed by schema name, that make a
// MockClient reproduce MockArticleInfo for any article.
func MockResponses() map[string]string {
	info := MockArticleInfo()
	responses := map[string]any{
		llm.SchemaFor[GeneralInfo]().Name:          GeneralInfo{Title: info.Title, Summary: info.Summary},
		llm.SchemaFor[BusinessCategory]().Name:     BusinessCategory{IsAboutBusiness: info.IsAboutBusiness},
		llm.SchemaFor[BusinessesInvolved]().Name:   BusinessesInvolved{Businesses: []string{info.BusinessInfo[0].Business}},
		llm.SchemaFor[BusinessSpecificInfo]().Name: info.BusinessInfo[0],
	}

	out := make(map[string]string, len(responses))
	for name, v := range responses {
		b, _ := json.Marshal(v)
		out[name] = string(b)
	}
	return out
}

// NewGenerator builds the Generator for cfg, including the mock provider.
func NewGenerator(cfg config.LLMConfig, httpClient *http.Client) (llm.Generator, error) {
	if cfg.Provider == config.ProviderMock {
		return llm.NewMockClient(MockResponses()), nil
	}
	return llm.New(cfg, httpClient)
}
