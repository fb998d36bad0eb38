// Package decision implements the pure reply-decision engine: category
// classification, clarifying-field detection, confidence scoring and the
// final action table.
package decision

import "regexp"

// CategoryGeneral is the fallback when no pattern matches.
const CategoryGeneral = "general"

type categoryPattern struct {
	name    string
	pattern *regexp.Regexp
}

// categoryPatterns is an ordered list; the first match wins, so the more
// specific money-movement categories sit before the broad ones.
var categoryPatterns = []categoryPattern{
	{"refund", regexp.MustCompile(`(?i)退款|退钱|退我|refund|money back`)},
	{"return", regexp.MustCompile(`(?i)退货|换货|退换|return|exchange`)},
	{"discount", regexp.MustCompile(`(?i)优惠|折扣|便宜|打折|discount|coupon|promo`)},
	{"payment", regexp.MustCompile(`(?i)支付|付款|付不了|payment|pay for|checkout`)},
	{"invoice", regexp.MustCompile(`(?i)发票|开票|invoice|receipt`)},
	{"delivery", regexp.MustCompile(`(?i)发货|到货|什么时候发|delivery|dispatch|ship my`)},
	{"shipping", regexp.MustCompile(`(?i)物流|快递|运费|包邮|shipping|tracking|courier`)},
	{"warranty", regexp.MustCompile(`(?i)保修|质保|维修|warranty|repair`)},
	{"complaint", regexp.MustCompile(`(?i)投诉|差评|太差|complaint|terrible|awful`)},
	{"price", regexp.MustCompile(`(?i)价格|多少钱|报价|price|how much|cost`)},
}

// highRiskCategories gate AUTO replies regardless of confidence.
var highRiskCategories = map[string]bool{
	"refund":    true,
	"return":    true,
	"discount":  true,
	"payment":   true,
	"complaint": true,
}

// Categorize classifies text into a topic category.
func Categorize(text string) string {
	for _, cp := range categoryPatterns {
		if cp.pattern.MatchString(text) {
			return cp.name
		}
	}

	return CategoryGeneral
}

// IsHighRiskCategory reports whether a category needs extra caution
// before any automatic reply.
func IsHighRiskCategory(category string) bool {
	return highRiskCategories[category]
}
