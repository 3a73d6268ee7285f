package commandkind

import (
	"strings"
)

type Kind struct {
	Name string
}

func (k Kind) Code() string {
	return k.Name
}

func (k Kind) Label() string {
	parts := strings.Split(k.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Order         Kind
	PlaceOrder    Kind
	Payment       Kind
	KOTPrint      Kind
	OrderCancel   Kind
	TableMerge    Kind
	TableTransfer Kind
	TableStatus   Kind
	Customer      Kind
	MenuInquiry   Kind
}

var Kinds = Enum{
	Order:         Kind{Name: "order"},
	PlaceOrder:    Kind{Name: "place-order"},
	Payment:       Kind{Name: "payment"},
	KOTPrint:      Kind{Name: "kot-print"},
	OrderCancel:   Kind{Name: "order-cancel"},
	TableMerge:    Kind{Name: "table-merge"},
	TableTransfer: Kind{Name: "table-transfer"},
	TableStatus:   Kind{Name: "table-status"},
	Customer:      Kind{Name: "customer"},
	MenuInquiry:   Kind{Name: "menu-inquiry"},
}

var All = []Kind{
	Kinds.Order,
	Kinds.PlaceOrder,
	Kinds.Payment,
	Kinds.KOTPrint,
	Kinds.OrderCancel,
	Kinds.TableMerge,
	Kinds.TableTransfer,
	Kinds.TableStatus,
	Kinds.Customer,
	Kinds.MenuInquiry,
}

// IsValid reports whether code names one of the closed set of command kinds.
func IsValid(code string) bool {
	for _, k := range All {
		if k.Name == code {
			return true
		}
	}
	return false
}
