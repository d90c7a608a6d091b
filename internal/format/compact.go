package format

import (
	"fmt"
	"math"
	"time"

	"github.com/rzbill/killfeed/internal/killmail"
)

// ESIKillmailURL is the href template for a killmail on ESI.
const ESIKillmailURL = "https://esi.evetech.net/latest/killmails/%d/%s/"

// Package is the /redisq response body. A nil Package renders as
// {"package":null}.
type Package struct {
	Package *Kill `json:"package"`
}

// Kill is one RedisQ package.
type Kill struct {
	KillID   int64       `json:"killID"`
	Killmail ESIKillmail `json:"killmail"`
	ZKB      ZKB         `json:"zkb"`
}

// ESIKillmail mirrors the ESI killmail document. Absent ids are omitted the
// way ESI omits them.
type ESIKillmail struct {
	KillmailID    int64         `json:"killmail_id"`
	KillmailTime  string        `json:"killmail_time"`
	SolarSystemID int64         `json:"solar_system_id"`
	WarID         int64         `json:"war_id,omitempty"`
	Victim        ESIVictim     `json:"victim"`
	Attackers     []ESIAttacker `json:"attackers"`
}

type ESIVictim struct {
	AllianceID    int64       `json:"alliance_id,omitempty"`
	CharacterID   int64       `json:"character_id,omitempty"`
	CorporationID int64       `json:"corporation_id,omitempty"`
	FactionID     int64       `json:"faction_id,omitempty"`
	DamageTaken   int64       `json:"damage_taken"`
	ShipTypeID    int64       `json:"ship_type_id"`
	Items         []ESIItem   `json:"items"`
	Position      ESIPosition `json:"position"`
}

type ESIAttacker struct {
	AllianceID     int64   `json:"alliance_id,omitempty"`
	CharacterID    int64   `json:"character_id,omitempty"`
	CorporationID  int64   `json:"corporation_id,omitempty"`
	FactionID      int64   `json:"faction_id,omitempty"`
	DamageDone     int64   `json:"damage_done"`
	FinalBlow      bool    `json:"final_blow"`
	SecurityStatus float64 `json:"security_status"`
	ShipTypeID     int64   `json:"ship_type_id,omitempty"`
	WeaponTypeID   int64   `json:"weapon_type_id,omitempty"`
}

type ESIItem struct {
	ItemTypeID        int64     `json:"item_type_id"`
	Flag              int64     `json:"flag"`
	QuantityDropped   int64     `json:"quantity_dropped,omitempty"`
	QuantityDestroyed int64     `json:"quantity_destroyed,omitempty"`
	Singleton         int64     `json:"singleton"`
	Items             []ESIItem `json:"items,omitempty"`
}

type ESIPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ZKB is the zKillboard metadata block.
type ZKB struct {
	LocationID     int64    `json:"locationID"`
	Hash           string   `json:"hash"`
	FittedValue    float64  `json:"fittedValue"`
	DroppedValue   float64  `json:"droppedValue"`
	DestroyedValue float64  `json:"destroyedValue"`
	TotalValue     float64  `json:"totalValue"`
	Points         int64    `json:"points"`
	NPC            bool     `json:"npc"`
	Solo           bool     `json:"solo"`
	Awox           bool     `json:"awox"`
	Href           string   `json:"href"`
	CreatedAt      string   `json:"createdAt"`
	Labels         []string `json:"labels"`
}

// Locator resolves the nearest-celestial location id for a killmail. It is
// the one read dependency of the compact formatter.
type Locator interface {
	LocationID(km *killmail.Killmail) int64
}

// RecordLocator returns the location id stored on the killmail.
type RecordLocator struct{}

func (RecordLocator) LocationID(km *killmail.Killmail) int64 { return km.LocationID }

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(km *killmail.Killmail) int64

func (f LocatorFunc) LocationID(km *killmail.Killmail) int64 { return f(km) }

// EmptyPackage is the body returned when there is nothing to deliver.
func EmptyPackage() Package { return Package{} }

// Compact renders rec as a RedisQ package. A nil rec yields EmptyPackage; a
// nil loc uses RecordLocator.
func Compact(rec *killmail.Record, loc Locator) Package {
	if rec == nil {
		return EmptyPackage()
	}
	if loc == nil {
		loc = RecordLocator{}
	}
	km := &rec.Killmail

	attackers := make([]ESIAttacker, 0, len(km.Attackers))
	for _, a := range km.Attackers {
		attackers = append(attackers, ESIAttacker{
			AllianceID:     a.AllianceID,
			CharacterID:    a.CharacterID,
			CorporationID:  a.CorporationID,
			FactionID:      a.FactionID,
			DamageDone:     a.DamageDone,
			FinalBlow:      a.FinalBlow,
			SecurityStatus: a.SecurityStatus,
			ShipTypeID:     a.ShipID,
			WeaponTypeID:   a.WeaponTypeID,
		})
	}

	v := km.Victim
	return Package{Package: &Kill{
		KillID: km.KillmailID,
		Killmail: ESIKillmail{
			KillmailID:    km.KillmailID,
			KillmailTime:  timestamp(km.KillTime),
			SolarSystemID: km.SystemID,
			WarID:         km.WarID,
			Victim: ESIVictim{
				AllianceID:    v.AllianceID,
				CharacterID:   v.CharacterID,
				CorporationID: v.CorporationID,
				FactionID:     v.FactionID,
				DamageTaken:   v.DamageTaken,
				ShipTypeID:    v.ShipID,
				Items:         esiItems(km.Items),
				Position:      ESIPosition{X: km.X, Y: km.Y, Z: km.Z},
			},
			Attackers: attackers,
		},
		ZKB: ZKB{
			LocationID:     loc.LocationID(km),
			Hash:           km.KillmailHash,
			FittedValue:    round2(km.FittedValue),
			DroppedValue:   round2(km.DroppedValue()),
			DestroyedValue: round2(km.DestroyedValue()),
			TotalValue:     round2(km.TotalValue),
			Points:         0,
			NPC:            km.IsNPC,
			Solo:           km.IsSolo,
			Awox:           false,
			Href:           fmt.Sprintf(ESIKillmailURL, km.KillmailID, km.KillmailHash),
			CreatedAt:      timestamp(km.CreatedAt),
			Labels:         []string{},
		},
	}}
}

func esiItems(items []killmail.Item) []ESIItem {
	out := make([]ESIItem, 0, len(items))
	for _, it := range items {
		e := ESIItem{
			ItemTypeID:        it.TypeID,
			Flag:              it.Flag,
			QuantityDropped:   it.QtyDropped,
			QuantityDestroyed: it.QtyDestroyed,
			Singleton:         it.Singleton,
		}
		if len(it.Items) > 0 {
			e.Items = esiItems(it.Items)
		}
		out = append(out, e)
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// timestamp renders t as RFC3339 in UTC, or "" for the zero time.
func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
