package format

import "github.com/rzbill/killfeed/internal/killmail"

// Envelope is the /stream response body. A nil Killmail renders as
// {"killmail":null}.
type Envelope struct {
	Killmail *VerboseKillmail `json:"killmail"`
}

// VerboseKillmail is the full stored record. No field is omitted.
type VerboseKillmail struct {
	RecordID        uint64  `json:"record_id"`
	KillmailID      int64   `json:"killmail_id"`
	KillmailHash    string  `json:"killmail_hash"`
	KillTime        string  `json:"kill_time"`
	SystemID        int64   `json:"system_id"`
	SystemName      string  `json:"system_name"`
	SystemSecurity  float64 `json:"system_security"`
	ConstellationID int64   `json:"constellation_id"`
	RegionID        int64   `json:"region_id"`
	RegionName      string  `json:"region_name"`
	LocationID      int64   `json:"location_id"`
	Near            string  `json:"near"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Z               float64 `json:"z"`
	ShipValue       float64 `json:"ship_value"`
	FittedValue     float64 `json:"fitted_value"`
	DroppedValue    float64 `json:"dropped_value"`
	DestroyedValue  float64 `json:"destroyed_value"`
	TotalValue      float64 `json:"total_value"`
	Points          int64   `json:"points"`
	IsNPC           bool    `json:"is_npc"`
	IsSolo          bool    `json:"is_solo"`
	WarID           int64   `json:"war_id"`

	Victim    VerboseVictim     `json:"victim"`
	Attackers []VerboseAttacker `json:"attackers"`
	Items     []VerboseItem     `json:"items"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type VerboseVictim struct {
	ShipID          int64  `json:"ship_id"`
	ShipName        string `json:"ship_name"`
	ShipGroupID     int64  `json:"ship_group_id"`
	ShipGroupName   string `json:"ship_group_name"`
	DamageTaken     int64  `json:"damage_taken"`
	CharacterID     int64  `json:"character_id"`
	CharacterName   string `json:"character_name"`
	CorporationID   int64  `json:"corporation_id"`
	CorporationName string `json:"corporation_name"`
	AllianceID      int64  `json:"alliance_id"`
	AllianceName    string `json:"alliance_name"`
	FactionID       int64  `json:"faction_id"`
	FactionName     string `json:"faction_name"`
}

type VerboseAttacker struct {
	ShipID          int64   `json:"ship_id"`
	ShipName        string  `json:"ship_name"`
	ShipGroupID     int64   `json:"ship_group_id"`
	ShipGroupName   string  `json:"ship_group_name"`
	CharacterID     int64   `json:"character_id"`
	CharacterName   string  `json:"character_name"`
	CorporationID   int64   `json:"corporation_id"`
	CorporationName string  `json:"corporation_name"`
	AllianceID      int64   `json:"alliance_id"`
	AllianceName    string  `json:"alliance_name"`
	FactionID       int64   `json:"faction_id"`
	FactionName     string  `json:"faction_name"`
	SecurityStatus  float64 `json:"security_status"`
	DamageDone      int64   `json:"damage_done"`
	FinalBlow       bool    `json:"final_blow"`
	WeaponTypeID    int64   `json:"weapon_type_id"`
	WeaponTypeName  string  `json:"weapon_type_name"`
}

type VerboseItem struct {
	TypeID       int64         `json:"type_id"`
	TypeName     string        `json:"type_name"`
	GroupID      int64         `json:"group_id"`
	GroupName    string        `json:"group_name"`
	CategoryID   int64         `json:"category_id"`
	Flag         int64         `json:"flag"`
	QtyDropped   int64         `json:"qty_dropped"`
	QtyDestroyed int64         `json:"qty_destroyed"`
	Singleton    int64         `json:"singleton"`
	Value        float64       `json:"value"`
	Items        []VerboseItem `json:"items"`
}

// EmptyEnvelope is the body returned when there is nothing to deliver.
func EmptyEnvelope() Envelope { return Envelope{} }

// Verbose renders rec with every key present. A nil rec yields
// EmptyEnvelope.
func Verbose(rec *killmail.Record) Envelope {
	if rec == nil {
		return EmptyEnvelope()
	}
	km := &rec.Killmail
	v := km.Victim

	attackers := make([]VerboseAttacker, 0, len(km.Attackers))
	for _, a := range km.Attackers {
		attackers = append(attackers, VerboseAttacker{
			ShipID:          a.ShipID,
			ShipName:        a.ShipName,
			ShipGroupID:     a.ShipGroupID,
			ShipGroupName:   a.ShipGroupName,
			CharacterID:     a.CharacterID,
			CharacterName:   a.CharacterName,
			CorporationID:   a.CorporationID,
			CorporationName: a.CorporationName,
			AllianceID:      a.AllianceID,
			AllianceName:    a.AllianceName,
			FactionID:       a.FactionID,
			FactionName:     a.FactionName,
			SecurityStatus:  a.SecurityStatus,
			DamageDone:      a.DamageDone,
			FinalBlow:       a.FinalBlow,
			WeaponTypeID:    a.WeaponTypeID,
			WeaponTypeName:  a.WeaponTypeName,
		})
	}

	return Envelope{Killmail: &VerboseKillmail{
		RecordID:        rec.ID,
		KillmailID:      km.KillmailID,
		KillmailHash:    km.KillmailHash,
		KillTime:        timestamp(km.KillTime),
		SystemID:        km.SystemID,
		SystemName:      km.SystemName,
		SystemSecurity:  km.SystemSecurity,
		ConstellationID: km.ConstellationID,
		RegionID:        km.RegionID,
		RegionName:      km.RegionName,
		LocationID:      km.LocationID,
		Near:            km.Near,
		X:               km.X,
		Y:               km.Y,
		Z:               km.Z,
		ShipValue:       round2(km.ShipValue),
		FittedValue:     round2(km.FittedValue),
		DroppedValue:    round2(km.DroppedValue()),
		DestroyedValue:  round2(km.DestroyedValue()),
		TotalValue:      round2(km.TotalValue),
		Points:          km.Points,
		IsNPC:           km.IsNPC,
		IsSolo:          km.IsSolo,
		WarID:           km.WarID,
		Victim: VerboseVictim{
			ShipID:          v.ShipID,
			ShipName:        v.ShipName,
			ShipGroupID:     v.ShipGroupID,
			ShipGroupName:   v.ShipGroupName,
			DamageTaken:     v.DamageTaken,
			CharacterID:     v.CharacterID,
			CharacterName:   v.CharacterName,
			CorporationID:   v.CorporationID,
			CorporationName: v.CorporationName,
			AllianceID:      v.AllianceID,
			AllianceName:    v.AllianceName,
			FactionID:       v.FactionID,
			FactionName:     v.FactionName,
		},
		Attackers: attackers,
		Items:     verboseItems(km.Items),
		CreatedAt: timestamp(km.CreatedAt),
		UpdatedAt: timestamp(km.UpdatedAt),
	}}
}

func verboseItems(items []killmail.Item) []VerboseItem {
	out := make([]VerboseItem, 0, len(items))
	for _, it := range items {
		out = append(out, VerboseItem{
			TypeID:       it.TypeID,
			TypeName:     it.TypeName,
			GroupID:      it.GroupID,
			GroupName:    it.GroupName,
			CategoryID:   it.CategoryID,
			Flag:         it.Flag,
			QtyDropped:   it.QtyDropped,
			QtyDestroyed: it.QtyDestroyed,
			Singleton:    it.Singleton,
			Value:        it.Value,
			Items:        verboseItems(it.Items),
		})
	}
	return out
}
