// Package killmail defines the stored killmail record handed out by the
// feed. Records are immutable once written; the feed only reads them.
package killmail

import "time"

// Record pairs a killmail with its insertion-ordered identifier. ID starts
// at 1 and strictly increases with insertion; it is unrelated to
// Killmail.KillmailID.
type Record struct {
	ID       uint64
	Killmail Killmail
}

// Killmail is the denormalized killmail as stored by the ingestion side.
type Killmail struct {
	KillmailID   int64     `json:"killmail_id"`
	KillmailHash string    `json:"killmail_hash"`
	KillTime     time.Time `json:"kill_time"`

	SystemID        int64   `json:"system_id"`
	SystemName      string  `json:"system_name,omitempty"`
	SystemSecurity  float64 `json:"system_security,omitempty"`
	ConstellationID int64   `json:"constellation_id,omitempty"`
	RegionID        int64   `json:"region_id,omitempty"`
	RegionName      string  `json:"region_name,omitempty"`
	// LocationID is the nearest celestial, when known.
	LocationID int64   `json:"location_id,omitempty"`
	Near       string  `json:"near,omitempty"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Z          float64 `json:"z,omitempty"`

	ShipValue   float64 `json:"ship_value,omitempty"`
	FittedValue float64 `json:"fitted_value,omitempty"`
	TotalValue  float64 `json:"total_value,omitempty"`
	Points      int64   `json:"points,omitempty"`

	IsNPC  bool  `json:"is_npc,omitempty"`
	IsSolo bool  `json:"is_solo,omitempty"`
	WarID  int64 `json:"war_id,omitempty"`

	Victim    Victim     `json:"victim"`
	Attackers []Attacker `json:"attackers,omitempty"`
	Items     []Item     `json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Victim is the destroyed ship and its pilot.
type Victim struct {
	ShipID          int64  `json:"ship_id"`
	ShipName        string `json:"ship_name,omitempty"`
	ShipGroupID     int64  `json:"ship_group_id,omitempty"`
	ShipGroupName   string `json:"ship_group_name,omitempty"`
	DamageTaken     int64  `json:"damage_taken"`
	CharacterID     int64  `json:"character_id,omitempty"`
	CharacterName   string `json:"character_name,omitempty"`
	CorporationID   int64  `json:"corporation_id,omitempty"`
	CorporationName string `json:"corporation_name,omitempty"`
	AllianceID      int64  `json:"alliance_id,omitempty"`
	AllianceName    string `json:"alliance_name,omitempty"`
	FactionID       int64  `json:"faction_id,omitempty"`
	FactionName     string `json:"faction_name,omitempty"`
}

// Attacker is one participant on the killing side.
type Attacker struct {
	ShipID          int64   `json:"ship_id,omitempty"`
	ShipName        string  `json:"ship_name,omitempty"`
	ShipGroupID     int64   `json:"ship_group_id,omitempty"`
	ShipGroupName   string  `json:"ship_group_name,omitempty"`
	CharacterID     int64   `json:"character_id,omitempty"`
	CharacterName   string  `json:"character_name,omitempty"`
	CorporationID   int64   `json:"corporation_id,omitempty"`
	CorporationName string  `json:"corporation_name,omitempty"`
	AllianceID      int64   `json:"alliance_id,omitempty"`
	AllianceName    string  `json:"alliance_name,omitempty"`
	FactionID       int64   `json:"faction_id,omitempty"`
	FactionName     string  `json:"faction_name,omitempty"`
	SecurityStatus  float64 `json:"security_status"`
	DamageDone      int64   `json:"damage_done"`
	FinalBlow       bool    `json:"final_blow"`
	WeaponTypeID    int64   `json:"weapon_type_id,omitempty"`
	WeaponTypeName  string  `json:"weapon_type_name,omitempty"`
}

// Item is a fitted or cargo item. Containers carry their contents in Items.
type Item struct {
	TypeID       int64  `json:"type_id"`
	TypeName     string `json:"type_name,omitempty"`
	GroupID      int64  `json:"group_id,omitempty"`
	GroupName    string `json:"group_name,omitempty"`
	CategoryID   int64  `json:"category_id,omitempty"`
	Flag         int64  `json:"flag"`
	QtyDropped   int64  `json:"qty_dropped"`
	QtyDestroyed int64  `json:"qty_destroyed"`
	Singleton    int64  `json:"singleton"`
	// Value is the per-unit value.
	Value float64 `json:"value"`
	Items []Item  `json:"items,omitempty"`
}

// DroppedValue sums value × qty_dropped over the item and its contents.
func (it Item) DroppedValue() float64 {
	v := it.Value * float64(it.QtyDropped)
	for _, child := range it.Items {
		v += child.DroppedValue()
	}
	return v
}

// DestroyedValue sums value × qty_destroyed over the item and its contents.
func (it Item) DestroyedValue() float64 {
	v := it.Value * float64(it.QtyDestroyed)
	for _, child := range it.Items {
		v += child.DestroyedValue()
	}
	return v
}

// DroppedValue sums DroppedValue over all top-level items.
func (k *Killmail) DroppedValue() float64 {
	var v float64
	for _, it := range k.Items {
		v += it.DroppedValue()
	}
	return v
}

// DestroyedValue sums DestroyedValue over all top-level items.
func (k *Killmail) DestroyedValue() float64 {
	var v float64
	for _, it := range k.Items {
		v += it.DestroyedValue()
	}
	return v
}

// Validate reports whether the killmail carries the fields every consumer
// relies on.
func (k *Killmail) Validate() error {
	switch {
	case k.KillmailID <= 0:
		return ErrInvalid("killmail_id must be positive")
	case k.KillmailHash == "":
		return ErrInvalid("killmail_hash is required")
	case k.KillTime.IsZero():
		return ErrInvalid("kill_time is required")
	}
	return nil
}

// ErrInvalid describes a killmail that cannot be stored.
type ErrInvalid string

func (e ErrInvalid) Error() string { return "killmail: " + string(e) }
