package stream

import (
	"bytes"
	"encoding/json"

	"github.com/cespare/xxhash/v2"
)

type recordKind uint8

const (
	kindTaxonomy recordKind = iota + 1
	kindEvent
	kindMarket
	kindQuote
)

type diffKey struct {
	kind recordKind
	id   int64
}

// diffCache guarda o hash de conteúdo da última representação vista de cada objeto.
// Só o loop de ingestão escreve nele.
type diffCache struct {
	seen map[diffKey]uint64
}

func newDiffCache() *diffCache {
	return &diffCache{seen: make(map[diffKey]uint64)}
}

// changed grava o novo hash e diz se ele difere do anterior
func (d *diffCache) changed(kind recordKind, id int64, raw []byte) bool {
	h := contentHash(raw)
	k := diffKey{kind, id}
	if prev, ok := d.seen[k]; ok && prev == h {
		return false
	}
	d.seen[k] = h
	return true
}

func (d *diffCache) forget(kind recordKind, id int64) { delete(d.seen, diffKey{kind, id}) }

func (d *diffCache) len() int { return len(d.seen) }

// contentHash normaliza o JSON (chaves ordenadas, sem espaços) antes do xxhash,
// então a mesma estrutura com outra formatação gera o mesmo hash
func contentHash(raw []byte) uint64 {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return xxhash.Sum64(raw)
	}
	canon, err := json.Marshal(v)
	if err != nil {
		return xxhash.Sum64(raw)
	}
	return xxhash.Sum64(canon)
}
