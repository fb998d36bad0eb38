package decision

import "regexp"

// ClarifyingField is a piece of information a risk-sensitive request needs
// before an answer can be drafted.
type ClarifyingField struct {
	Name     string
	Question string
}

var (
	orderNumberPattern = regexp.MustCompile(`(?i)(订单号|单号|order\s*(number|no\.?|#))\s*[:：]?\s*[A-Za-z0-9-]{4,}|\b\d{8,}\b`)
	productPattern     = regexp.MustCompile(`(?i)商品|产品|型号|款式|这个|那个|product|item|model|sku`)
	datePattern        = regexp.MustCompile(`(?i)\d{1,4}[-/年\.]\d{1,2}([-/月\.]\d{1,2})?|昨天|前天|上周|上个月|yesterday|last week|last month|days ago`)
	detailPattern      = regexp.MustCompile(`(?i)因为|由于|问题是|情况是|收到|质量|破损|坏了|because|issue is|received|broken|defect`)
)

var (
	fieldOrderNumber = ClarifyingField{Name: "order_number", Question: "请提供您的订单号"}
	fieldProduct     = ClarifyingField{Name: "product", Question: "请告诉我们是哪件商品"}
	fieldDate        = ClarifyingField{Name: "date", Question: "请告知大概的购买或收货日期"}
	fieldDetail      = ClarifyingField{Name: "detail", Question: "请简单描述一下具体情况"}
)

// requiredFields lists what each risk-sensitive category must know before
// a draft makes sense.
var requiredFields = map[string][]struct {
	field   ClarifyingField
	pattern *regexp.Regexp
}{
	"refund": {
		{fieldOrderNumber, orderNumberPattern},
		{fieldProduct, productPattern},
		{fieldDate, datePattern},
	},
	"return": {
		{fieldOrderNumber, orderNumberPattern},
		{fieldProduct, productPattern},
		{fieldDate, datePattern},
	},
	"payment": {
		{fieldOrderNumber, orderNumberPattern},
		{fieldDetail, detailPattern},
	},
	"complaint": {
		{fieldOrderNumber, orderNumberPattern},
		{fieldDetail, detailPattern},
	},
	"discount": {
		{fieldProduct, productPattern},
	},
	"invoice": {
		{fieldOrderNumber, orderNumberPattern},
	},
}

const maxClarifyingQuestions = 3

// MissingFields returns the clarifying questions for information the text
// does not carry, capped at three. Only risk-sensitive categories have
// required fields.
func MissingFields(category, text string) []ClarifyingField {
	required, ok := requiredFields[category]
	if !ok {
		return nil
	}

	var missing []ClarifyingField

	for _, rf := range required {
		if len(missing) == maxClarifyingQuestions {
			break
		}

		if !rf.pattern.MatchString(text) {
			missing = append(missing, rf.field)
		}
	}

	return missing
}
