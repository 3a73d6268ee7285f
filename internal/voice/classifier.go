package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"

	"github.com/tablevox/tablevox/pkg/enums/commandkind"
)

// Classifier turns a raw utterance into a typed command draft. When prior is
// non-nil the classification is seeded with the prior partial command's known
// fields and the new text supplies the missing ones. Implementations must set
// IsIncomplete and MissingFields when required fields cannot be resolved, and
// must never fabricate values for fields the text does not provide.
type Classifier interface {
	Classify(ctx context.Context, restaurantID uuid.UUID, rawText string, prior *Command) (*Command, error)
}

// HTTPClassifier delegates classification to the external NLU service.
type HTTPClassifier struct {
	client *aqm.ServiceClient
	logger aqm.Logger
}

func NewHTTPClassifier(client *aqm.ServiceClient, logger aqm.Logger) *HTTPClassifier {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &HTTPClassifier{
		client: client,
		logger: logger,
	}
}

type classifyRequest struct {
	RestaurantID string   `json:"restaurant_id"`
	Text         string   `json:"text"`
	Prior        *Command `json:"prior,omitempty"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, restaurantID uuid.UUID, rawText string, prior *Command) (*Command, error) {
	if c.client == nil {
		return nil, fmt.Errorf("classifier client not configured")
	}

	payload := classifyRequest{
		RestaurantID: restaurantID.String(),
		Text:         rawText,
		Prior:        prior,
	}

	resp, err := c.client.Request(ctx, "POST", "/classifications", payload)
	if err != nil {
		return nil, fmt.Errorf("cannot classify utterance: %w", err)
	}

	var cmd Command
	if err := rehydrate(resp.Data, &cmd); err != nil {
		return nil, fmt.Errorf("cannot decode classification: %w", err)
	}

	cmd.RestaurantID = restaurantID
	cmd.EnsureID()
	if cmd.OriginalText == "" {
		cmd.OriginalText = rawText
	}
	return &cmd, nil
}

// RuleClassifier is the deterministic fallback: a keyword intent router with
// table-number and quantity extraction. It is the default when no classifier
// service URL is configured and backs the unit tests.
type RuleClassifier struct {
	logger aqm.Logger
}

func NewRuleClassifier(logger aqm.Logger) *RuleClassifier {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &RuleClassifier{logger: logger}
}

var (
	tablePairPattern = regexp.MustCompile(`table\s+(\d+)\s+(?:into|to|with|and)\s+table\s+(\d+)`)
	tablePattern     = regexp.MustCompile(`table\s+(\d+)`)
	phonePattern     = regexp.MustCompile(`(\+?\d[\d\s-]{6,}\d)`)
	namePattern      = regexp.MustCompile(`(?:customer|name is|for)\s+([a-z]+(?:\s[a-z]+)?)$`)
	itemPattern      = regexp.MustCompile(`^(\d+|a|an|one|two|three|four|five|six|seven|eight|nine|ten)\s+(.+)$`)
)

var quantityWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

func (c *RuleClassifier) Classify(ctx context.Context, restaurantID uuid.UUID, rawText string, prior *Command) (*Command, error) {
	text := strings.ToLower(strings.TrimSpace(rawText))

	var cmd *Command
	if prior != nil {
		cmd = prior.Clone()
		cmd.RestaurantID = restaurantID
		cmd.OriginalText = strings.TrimSpace(prior.OriginalText + " " + rawText)
	} else {
		cmd = NewCommand(restaurantID, "", rawText)
	}

	if kind, ok := detectKind(text); ok {
		cmd.Kind = kind
	}

	if m := tablePairPattern.FindStringSubmatch(text); m != nil {
		cmd.TableNumber = m[1]
		cmd.TargetTableNumber = m[2]
	} else if m := tablePattern.FindStringSubmatch(text); m != nil && cmd.TableNumber == "" {
		cmd.TableNumber = m[1]
	}

	if items := parseMenuItems(text); len(items) > 0 {
		cmd.MenuItems = append(cmd.MenuItems, items...)
	}

	if cmd.Kind == commandkind.Kinds.Payment.Name {
		cmd.PaymentMethod = detectPaymentMethod(text)
	}

	if cmd.Kind == commandkind.Kinds.Customer.Name {
		if m := phonePattern.FindStringSubmatch(text); m != nil && cmd.CustomerPhone == "" {
			cmd.CustomerPhone = strings.ReplaceAll(strings.ReplaceAll(m[1], " ", ""), "-", "")
		}
		if m := namePattern.FindStringSubmatch(text); m != nil && cmd.CustomerName == "" {
			cmd.CustomerName = m[1]
		}
	}

	cmd.IsIncomplete = false
	cmd.MissingFields = ""
	if cmd.Kind != "" {
		if errs := ValidateCommand(cmd); len(errs) > 0 && commandkind.IsValid(cmd.Kind) {
			cmd.IsIncomplete = true
			cmd.MissingFields = strings.Join(errs, "; ")
		}
	}

	return cmd, nil
}

func detectKind(text string) (string, bool) {
	switch {
	case strings.Contains(text, "place") && strings.Contains(text, "order"):
		return commandkind.Kinds.PlaceOrder.Name, true
	case strings.Contains(text, "cancel"):
		return commandkind.Kinds.OrderCancel.Name, true
	case strings.Contains(text, "kot") || strings.Contains(text, "kitchen ticket") ||
		(strings.Contains(text, "print") && strings.Contains(text, "ticket")):
		return commandkind.Kinds.KOTPrint.Name, true
	case strings.Contains(text, "merge"):
		return commandkind.Kinds.TableMerge.Name, true
	case strings.Contains(text, "transfer") || strings.Contains(text, "move"):
		return commandkind.Kinds.TableTransfer.Name, true
	case strings.Contains(text, "status"):
		return commandkind.Kinds.TableStatus.Name, true
	case strings.Contains(text, "pay") || strings.Contains(text, "bill") || strings.Contains(text, "settle"):
		return commandkind.Kinds.Payment.Name, true
	case strings.Contains(text, "customer") || strings.Contains(text, "guest"):
		return commandkind.Kinds.Customer.Name, true
	case strings.Contains(text, "menu") || strings.Contains(text, "do we have"):
		return commandkind.Kinds.MenuInquiry.Name, true
	case strings.Contains(text, "order") || strings.Contains(text, "add"):
		return commandkind.Kinds.Order.Name, true
	}
	return "", false
}

func detectPaymentMethod(text string) string {
	switch {
	case strings.Contains(text, "cash"):
		return "cash"
	case strings.Contains(text, "card"):
		return "card"
	case strings.Contains(text, "upi"):
		return "upi"
	}
	return ""
}

var (
	tableRefPattern = regexp.MustCompile(`\b(?:for|to|on|at)?\s*table\s+\d+\b(?:\s+with\b)?`)
	verbPattern     = regexp.MustCompile(`\b(?:please|place|order|add|get|bring|me|us|the|with)\b`)
)

// parseMenuItems extracts "{quantity} {item}" segments, e.g. "two burgers and
// a cola" yields burger x2 and cola x1. Table references and request verbs
// are stripped first so they never leak into item names.
func parseMenuItems(text string) []MenuItemRef {
	text = tableRefPattern.ReplaceAllString(text, ",")
	text = verbPattern.ReplaceAllString(text, " ")

	var items []MenuItemRef
	segments := strings.FieldsFunc(text, func(r rune) bool { return r == ',' })
	var parts []string
	for _, seg := range segments {
		parts = append(parts, strings.Split(seg, " and ")...)
	}

	for _, part := range parts {
		part = strings.TrimSpace(part)
		m := itemPattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		qty, ok := quantityWords[m[1]]
		if !ok {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				continue
			}
			qty = n
		}
		name := singularize(strings.TrimSpace(m[2]))
		if name == "" || name == "table" {
			continue
		}
		items = append(items, MenuItemRef{Name: name, Quantity: qty})
	}
	return items
}

func singularize(name string) string {
	if strings.HasSuffix(name, "ses") || strings.HasSuffix(name, "ies") {
		return name
	}
	if strings.HasSuffix(name, "s") && len(name) > 3 {
		return strings.TrimSuffix(name, "s")
	}
	return name
}

func rehydrate(data interface{}, out interface{}) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}
