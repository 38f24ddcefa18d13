// Package vocab maps state codes to display labels. Arabic is the default
// language; English labels are available for API clients that ask for them.
//
// Labels are for presentation only. Filters compare codes.
package vocab

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"matjar/backoffice/internal/domain"
)

const (
	keyUnknown        = "label.unknown"
	keyUnspecified    = "label.unspecified"
	keyUnknownProduct = "label.unknown_product"
	keyNoNotes        = "label.no_notes"
)

type entry struct {
	key string
	ar  string
	en  string
}

var entries = []entry{
	{"order.new", "جديد", "New"},
	{"order.confirmed", "مؤكد", "Confirmed"},
	{"order.delayed", "مؤجل", "Delayed"},
	{"order.cancelled", "ملغي", "Cancelled"},
	{"order.shipped", "مشحون", "Shipped"},
	{"order.delivered", "مستلم", "Delivered"},
	{"order.returned", "مرتجع", "Returned"},
	{"order.completed", "مكتمل", "Completed"},

	{"customer.inactive", "غير نشط", "Inactive"},
	{"customer.active", "نشط", "Active"},
	{"customer.banned", "محظور", "Banned"},

	{"return.pending", "بانتظار المراجعة", "Pending review"},
	{"return.approved", "تمت الموافقة", "Approved"},
	{"return.rejected", "تم الرفض", "Rejected"},

	{"stock.out-of-stock", "نفذ من المخزون", "Out of stock"},
	{"stock.low-stock", "مخزون منخفض", "Low stock"},
	{"stock.in-stock", "متوفر", "In stock"},

	{"movement.addition", "إضافة", "Addition"},
	{"movement.withdrawal", "سحب", "Withdrawal"},
	{"movement.adjustment", "تعديل", "Adjustment"},

	{keyUnknown, "غير معروف", "Unknown"},
	{keyUnspecified, "غير محدد", "Not specified"},
	{keyUnknownProduct, "منتج غير معروف", "Unknown product"},
	{keyNoNotes, "لا توجد ملاحظات", "No notes"},
}

var supported = []language.Tag{language.Arabic, language.English}

var (
	matcher  = language.NewMatcher(supported)
	builder  = newCatalog()
	printers = map[language.Tag]*message.Printer{}
	known    = map[string]struct{}{}
)

func init() {
	for _, tag := range supported {
		printers[tag] = message.NewPrinter(tag, message.Catalog(builder))
	}
	for _, e := range entries {
		known[e.key] = struct{}{}
	}
}

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.Arabic))
	for _, e := range entries {
		// SetString only fails on malformed messages; these are literals.
		_ = b.SetString(language.Arabic, e.key, e.ar)
		_ = b.SetString(language.English, e.key, e.en)
	}
	return b
}

// Labels translates codes for one language. The zero value uses Arabic.
type Labels struct {
	tag language.Tag
}

// Default is the Arabic vocabulary.
var Default = Labels{tag: language.Arabic}

// For returns the labels for tag, or Arabic if tag is unsupported.
func For(tag language.Tag) Labels {
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Default
	}
	return Labels{tag: supported[idx]}
}

// Match negotiates an Accept-Language header value. Empty or unparseable
// input selects Arabic.
func Match(acceptLanguage string) Labels {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	return Labels{tag: supported[idx]}
}

func (l Labels) Tag() language.Tag {
	if l.tag == language.Und {
		return language.Arabic
	}
	return l.tag
}

func (l Labels) lookup(key string) string {
	if _, ok := known[key]; !ok {
		key = keyUnknown
	}
	return printers[l.Tag()].Sprintf(key)
}

func (l Labels) OrderStatus(state domain.OrderState) string {
	if !state.Valid() {
		return l.Unknown()
	}
	return l.lookup("order." + state.String())
}

func (l Labels) CustomerStatus(state domain.CustomerState) string {
	if !state.Valid() {
		return l.Unknown()
	}
	return l.lookup("customer." + state.String())
}

func (l Labels) ReturnStatus(status domain.ApprovalStatus) string {
	return l.lookup("return." + string(status))
}

func (l Labels) StockLevel(level domain.StockLevel) string {
	return l.lookup("stock." + level.String())
}

func (l Labels) MovementType(kind domain.MovementType) string {
	return l.lookup("movement." + string(kind))
}

func (l Labels) Unknown() string        { return l.lookup(keyUnknown) }
func (l Labels) Unspecified() string    { return l.lookup(keyUnspecified) }
func (l Labels) UnknownProduct() string { return l.lookup(keyUnknownProduct) }
func (l Labels) NoNotes() string        { return l.lookup(keyNoNotes) }

// OrderStatusLabel returns the Arabic label of an order state code.
func OrderStatusLabel(code int) string {
	return Default.OrderStatus(domain.OrderState(code))
}

// CustomerStatusLabel returns the Arabic label of a customer state code.
func CustomerStatusLabel(code int) string {
	return Default.CustomerStatus(domain.CustomerState(code))
}

// ReturnStatusLabel returns the Arabic label of a return approval status.
func ReturnStatusLabel(status string) string {
	return Default.ReturnStatus(domain.ApprovalStatus(status))
}

func StockLevelLabel(level domain.StockLevel) string {
	return Default.StockLevel(level)
}

func MovementTypeLabel(kind domain.MovementType) string {
	return Default.MovementType(kind)
}

func UnknownLabel() string     { return Default.Unknown() }
func UnspecifiedLabel() string { return Default.Unspecified() }
