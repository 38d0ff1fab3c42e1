package feed

import (
	"encoding/json"
	"fmt"
)

// Códigos de fator (customFactors[].factors[].f) usados na extração de cotações
const (
	FactorOutcome1  = 921
	FactorOutcomeX  = 922
	FactorOutcome2  = 923
	FactorOutcome1X = 924
	FactorOutcomeX2 = 925
)

// TopLevel é o nível de evento que representa a partida (demais níveis são submercados)
const TopLevel = 1

// SportNode é um item de "sports": esporte ou segmento (torneio)
type SportNode struct {
	ID       int64  `json:"id"`
	ParentID int64  `json:"parentId"`
	Kind     string `json:"kind"`
	Name     string `json:"name"`

	Raw json.RawMessage `json:"-"`
}

// EventRecord é um item de "events"; SportID aponta para o segmento
type EventRecord struct {
	ID        int64  `json:"id"`
	ParentID  int64  `json:"parentId"`
	SportID   int64  `json:"sportId"`
	Level     int    `json:"level"`
	Team1     string `json:"team1"`
	Team2     string `json:"team2"`
	StartTime int64  `json:"startTime"`

	Raw json.RawMessage `json:"-"`
}

// MarketRecord só precisa do id; o resto fica em Raw para o diff
type MarketRecord struct {
	ID int64 `json:"id"`

	Raw json.RawMessage `json:"-"`
}

type Factor struct {
	F int     `json:"f"`
	V float64 `json:"v"`
}

// FactorSet é um delta de cotações de um evento
type FactorSet struct {
	E       int64    `json:"e"`
	Factors []Factor `json:"factors"`

	Raw json.RawMessage `json:"-"`
}

// Packet é o snapshot delta devolvido por /events/list já tipado.
// Registros malformados são descartados na decodificação e contados em Skipped.
type Packet struct {
	PacketVersion int64
	Sports        []SportNode
	Events        []EventRecord
	Markets       []MarketRecord
	Factors       []FactorSet
	Deleted       []int64
	Skipped       int
}

type rawPacket struct {
	PacketVersion *int64            `json:"packetVersion"`
	Sports        []json.RawMessage `json:"sports"`
	Events        []json.RawMessage `json:"events"`
	Markets       []json.RawMessage `json:"markets"`
	CustomFactors []json.RawMessage `json:"customFactors"`
	Deleted       []json.RawMessage `json:"deleted"`
}

// Decode interpreta o corpo da resposta. Só falha se o envelope for inválido
// (JSON quebrado ou sem packetVersion); itens ruins são pulados.
func Decode(body []byte) (Packet, error) {
	var rp rawPacket
	if err := json.Unmarshal(body, &rp); err != nil {
		return Packet{}, fmt.Errorf("decode packet: %w", err)
	}
	if rp.PacketVersion == nil {
		return Packet{}, fmt.Errorf("decode packet: missing packetVersion")
	}

	p := Packet{PacketVersion: *rp.PacketVersion}

	for _, raw := range rp.Sports {
		var s SportNode
		if err := json.Unmarshal(raw, &s); err != nil || s.ID == 0 {
			p.Skipped++
			continue
		}
		s.Raw = raw
		p.Sports = append(p.Sports, s)
	}
	for _, raw := range rp.Events {
		var e EventRecord
		if err := json.Unmarshal(raw, &e); err != nil || e.ID == 0 {
			p.Skipped++
			continue
		}
		e.Raw = raw
		p.Events = append(p.Events, e)
	}
	for _, raw := range rp.Markets {
		var m MarketRecord
		if err := json.Unmarshal(raw, &m); err != nil || m.ID == 0 {
			p.Skipped++
			continue
		}
		m.Raw = raw
		p.Markets = append(p.Markets, m)
	}
	for _, raw := range rp.CustomFactors {
		var f FactorSet
		if err := json.Unmarshal(raw, &f); err != nil || f.E == 0 {
			p.Skipped++
			continue
		}
		f.Raw = raw
		p.Factors = append(p.Factors, f)
	}
	for _, raw := range rp.Deleted {
		var id int64
		if err := json.Unmarshal(raw, &id); err != nil {
			p.Skipped++
			continue
		}
		p.Deleted = append(p.Deleted, id)
	}

	return p, nil
}
