package killstore

import "encoding/binary"

// Keyspace (byte-wise sortable):
//   - km/m                     last assigned record id (be8)
//   - km/e/{id_be8}            encoded record
//   - km/x/{killmail_id_be8}   record id for a business killmail id (be8)

var (
	metaKey   = []byte("km/m")
	entrySeg  = []byte("km/e/")
	bizIdxSeg = []byte("km/x/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyEntry builds the entry key for a record id.
func KeyEntry(id uint64) []byte {
	k := make([]byte, 0, len(entrySeg)+8)
	k = append(k, entrySeg...)
	return appendBE8(k, id)
}

// KeyKillmailIndex builds the business-id index key.
func KeyKillmailIndex(killmailID int64) []byte {
	k := make([]byte, 0, len(bizIdxSeg)+8)
	k = append(k, bizIdxSeg...)
	return appendBE8(k, uint64(killmailID))
}

// idFromEntryKey extracts the record id from an entry key.
func idFromEntryKey(k []byte) (uint64, bool) {
	if len(k) != len(entrySeg)+8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(k[len(entrySeg):]), true
}
