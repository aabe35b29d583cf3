package model

import "time"

// Kind classifies a rupee transaction by its detail payload.
type Kind string

const (
	KindShop     Kind = "shop"
	KindPayment  Kind = "payment"
	KindBonusFee Kind = "bonus_fee"
	KindRaw      Kind = "raw"
)

// BonusTag identifies the sub-kind of a bonus or fee transaction.
type BonusTag string

const (
	TagDailySignin BonusTag = "daily_signin"
	TagVote        BonusTag = "vote"
	TagHorseSummon BonusTag = "horse_summon"
	TagMail        BonusTag = "mail"
	TagEggify      BonusTag = "eggify"
	TagLock        BonusTag = "lock"
	TagVault       BonusTag = "vault"
)

// Detail is the kind-specific payload of a Record. The set of
// implementations is closed: ShopTrade, Payment, BonusFee and Raw.
type Detail interface {
	Kind() Kind
	isDetail()
}

// ShopTrade is a purchase or sale through a player shop. Exactly one of
// Customer (someone used the player's shop) or Owner (the player used someone
// else's shop) is set.
type ShopTrade struct {
	Customer string
	Owner    string
	Item     string
	Quantity int // negative = items left the player's hands
}

// Counterparty returns whichever player was on the other side of the trade.
func (s ShopTrade) Counterparty() string {
	if s.Customer != "" {
		return s.Customer
	}
	return s.Owner
}

// Payment is a player-to-player rupee transfer.
type Payment struct {
	Player string
	Reason string // empty if none was given
}

// BonusFee is a server-issued bonus or a server fee.
type BonusFee struct {
	Tag  BonusTag
	Note string // e.g. vote site, mail recipient, horse world
}

// Raw is a transaction no scribe recognized. Its text is Record.Description.
type Raw struct{}

func (ShopTrade) Kind() Kind { return KindShop }
func (Payment) Kind() Kind   { return KindPayment }
func (BonusFee) Kind() Kind  { return KindBonusFee }
func (Raw) Kind() Kind       { return KindRaw }

func (ShopTrade) isDetail() {}
func (Payment) isDetail()   {}
func (BonusFee) isDetail()  {}
func (Raw) isDetail()       {}

// Record is one entry of the rupee transaction history.
type Record struct {
	Time        time.Time
	Description string
	Amount      int // signed rupees
	Balance     int // player balance after this record was applied
	Detail      Detail
}

// Kind returns the record's kind. A record without detail is raw.
func (r Record) Kind() Kind {
	if r.Detail == nil {
		return KindRaw
	}
	return r.Detail.Kind()
}

// Counterparty returns the other player involved, if any.
func (r Record) Counterparty() string {
	switch d := r.Detail.(type) {
	case ShopTrade:
		return d.Counterparty()
	case Payment:
		return d.Player
	}
	return ""
}
