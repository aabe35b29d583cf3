package scribe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/emcshop-dev/emcshop/internal/model"
)

// parseNumber parses a count that may contain thousands separators.
func parseNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("parsing number %q: %w", s, err)
	}
	return n, nil
}

// shopPattern is one phrasing of a shop transaction. sign is applied to the
// quantity; customer says whether the other player used the player's shop.
type shopPattern struct {
	re       *regexp.Regexp
	sign     int
	customer bool
}

var shopPatterns = []shopPattern{
	{regexp.MustCompile(`(?i)^Player shop sold ([\d,]+) (.*?) to (.*)$`), -1, true},
	{regexp.MustCompile(`(?i)^Your player shop bought ([\d,]+) (.*?) from (.*)$`), 1, true},
	{regexp.MustCompile(`(?i)^Player shop purchased ([\d,]+) (.*?) from (.*)$`), 1, false},
	{regexp.MustCompile(`(?i)^Sold to player shop ([\d,]+) (.*?) to (.*)$`), -1, false},
}

type shopScribe struct{}

func (shopScribe) Name() string { return "shop" }

func (shopScribe) Parse(description string) (model.Detail, bool, error) {
	for _, p := range shopPatterns {
		m := p.re.FindStringSubmatch(description)
		if m == nil {
			continue
		}
		qty, err := parseNumber(m[1])
		if err != nil {
			return nil, false, err
		}
		trade := model.ShopTrade{Item: m[2], Quantity: qty * p.sign}
		if p.customer {
			trade.Customer = m[3]
		} else {
			trade.Owner = m[3]
		}
		return trade, true, nil
	}
	return nil, false, nil
}

var paymentRe = regexp.MustCompile(`(?i)^Payment (?:from|to) (.*?)(?::\s*(.*))?$`)

type paymentScribe struct{}

func (paymentScribe) Name() string { return "payment" }

func (paymentScribe) Parse(description string) (model.Detail, bool, error) {
	m := paymentRe.FindStringSubmatch(description)
	if m == nil {
		return nil, false, nil
	}
	return model.Payment{Player: m[1], Reason: strings.TrimSpace(m[2])}, true, nil
}

// exactScribe matches one fixed description, ignoring case.
type exactScribe struct {
	name string
	text string
	tag  model.BonusTag
}

func (s exactScribe) Name() string { return s.name }

func (s exactScribe) Parse(description string) (model.Detail, bool, error) {
	if !strings.EqualFold(description, s.text) {
		return nil, false, nil
	}
	return model.BonusFee{Tag: s.tag}, true, nil
}

// regexScribe builds a bonus or fee detail from a single pattern's
// submatches.
type regexScribe struct {
	name string
	re   *regexp.Regexp
	tag  model.BonusTag
	note func(m []string) (string, error)
}

func (s regexScribe) Name() string { return s.name }

func (s regexScribe) Parse(description string) (model.Detail, bool, error) {
	m := s.re.FindStringSubmatch(description)
	if m == nil {
		return nil, false, nil
	}
	note, err := s.note(m)
	if err != nil {
		return nil, false, err
	}
	return model.BonusFee{Tag: s.tag, Note: note}, true, nil
}

func horseSummonScribe() regexScribe {
	return regexScribe{
		name: "horse-summon",
		re:   regexp.MustCompile(`(?i)^Summoned stabled horse in the wild @ (.*?):(.*?):(.*?):(.*?)$`),
		tag:  model.TagHorseSummon,
		note: func(m []string) (string, error) {
			for _, c := range m[2:5] {
				if _, err := strconv.ParseFloat(c, 64); err != nil {
					return "", fmt.Errorf("parsing coordinate %q: %w", c, err)
				}
			}
			return fmt.Sprintf("%s:%s,%s,%s", m[1], m[2], m[3], m[4]), nil
		},
	}
}

func mailScribe() regexScribe {
	return regexScribe{
		name: "mail",
		re:   regexp.MustCompile(`(?i)^Sent mail to (.*?): (.*)$`),
		tag:  model.TagMail,
		note: func(m []string) (string, error) { return m[1], nil },
	}
}

func eggifyScribe() regexScribe {
	return regexScribe{
		name: "eggify",
		re:   regexp.MustCompile(`(?i)^Eggified a (.*)$`),
		tag:  model.TagEggify,
		note: func(m []string) (string, error) { return m[1], nil },
	}
}

func lockScribe() regexScribe {
	return regexScribe{
		name: "lock",
		re:   regexp.MustCompile(`(?i)^(Locked an item|(Full|Partial) refund for unlocking item) (.*?):(.*?),(.*?),(.*?)$`),
		tag:  model.TagLock,
		note: func(m []string) (string, error) {
			for _, c := range m[4:7] {
				if _, err := strconv.Atoi(c); err != nil {
					return "", fmt.Errorf("parsing coordinate %q: %w", c, err)
				}
			}
			return fmt.Sprintf("%s:%s,%s,%s", m[3], m[4], m[5], m[6]), nil
		},
	}
}

func voteScribe() regexScribe {
	return regexScribe{
		name: "vote",
		re:   regexp.MustCompile(`(?i)^Voted for Empire Minecraft on (.*?) - day bonus: (\d+)$`),
		tag:  model.TagVote,
		note: func(m []string) (string, error) {
			day, err := parseNumber(m[2])
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s day %d", m[1], day), nil
		},
	}
}
