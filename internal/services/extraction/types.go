package extraction

import "fmt"

// GeneralInfo is the title and short summary of an article.
type GeneralInfo struct {
	Title   string `json:"title" jsonschema_description:"The title of the article"`
	Summary string `json:"summary" jsonschema_description:"A single sentence summary of the article"`
}

// BusinessCategory tells whether an article is about business.
type BusinessCategory struct {
	IsAboutBusiness bool `json:"is_about_business" jsonschema_description:"Whether the article is about business"`
}

// BusinessesInvolved lists the companies an article talks about, in the
// order the model returned them.
type BusinessesInvolved struct {
	Businesses []string `json:"businesses" jsonschema_description:"Which main businesses or companies are involved in the article"`
}

type StockPriceChange string

const (
	StockPriceIncrease StockPriceChange = "increase"
	StockPriceDecrease StockPriceChange = "decrease"
	StockPriceNone     StockPriceChange = "none"
)

func (c StockPriceChange) Valid() bool {
	switch c {
	case StockPriceIncrease, StockPriceDecrease, StockPriceNone:
		return true
	}
	return false
}

// BusinessSpecificInfo is the expected stock impact of an article on one
// business.
type BusinessSpecificInfo struct {
	Business          string           `json:"business" jsonschema_description:"The business or company involved"`
	StockPriceChange  StockPriceChange `json:"stock_price_change" jsonschema:"enum=increase,enum=decrease,enum=none" jsonschema_description:"Possible stock price change as result of the article: increase if the article speaks positively about the business, decrease if negatively, none if neutrally"`
	Reason            string           `json:"reason" jsonschema_description:"A single sentence reason for the possible stock price change"`
	RelevantSubstring string           `json:"relevant_substring" jsonschema_description:"A relevant substring from the article supporting the reason (10-20 words)"`
}

func (b *BusinessSpecificInfo) Validate() error {
	if !b.StockPriceChange.Valid() {
		return fmt.Errorf("invalid stock_price_change %q", b.StockPriceChange)
	}
	return nil
}

// ArticleInfo aggregates every extraction step for one article.
// BusinessInfo is empty, never nil, when IsAboutBusiness is false.
type ArticleInfo struct {
	Title           string                 `json:"title"`
	Summary         string                 `json:"summary"`
	IsAboutBusiness bool                   `json:"is_about_business"`
	BusinessInfo    []BusinessSpecificInfo `json:"business_info"`
}
