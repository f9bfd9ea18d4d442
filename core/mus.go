package core

import (
	"time"

	"github.com/mus-format/mus-go"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the values persisted by storage backends.
var (
	IDMUS           = idMUS{}
	RecentSearchMUS = recentSearchMUS{}
)

var (
	_ mus.Serializer[ID]           = IDMUS
	_ mus.Serializer[RecentSearch] = RecentSearchMUS
)

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return varint.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	var u uint64
	u, n, err = varint.Uint64.Unmarshal(bs)
	return ID(u), n, err
}

func (s idMUS) Size(v ID) (size int) {
	return varint.Uint64.Size(uint64(v))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	return varint.Uint64.Skip(bs)
}

// recentSearchMUS encodes Term as a length-prefixed string followed by At
// in Unix nanoseconds. Decoded times are UTC.
type recentSearchMUS struct{}

func (s recentSearchMUS) Marshal(v RecentSearch, bs []byte) (n int) {
	n = ord.String.Marshal(v.Term, bs)
	n += raw.TimeUnixNanoUTC.Marshal(v.At, bs[n:])
	return
}

func (s recentSearchMUS) Unmarshal(bs []byte) (v RecentSearch, n int, err error) {
	v.Term, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	var at time.Time
	at, n1, err = raw.TimeUnixNanoUTC.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.At = at
	return
}

func (s recentSearchMUS) Size(v RecentSearch) (size int) {
	return ord.String.Size(v.Term) + raw.TimeUnixNanoUTC.Size(v.At)
}

func (s recentSearchMUS) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = raw.TimeUnixNanoUTC.Skip(bs[n:])
	n += n1
	return
}
