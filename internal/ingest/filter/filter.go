// Package filter implementa o filtro de negócio aplicado antes de persistir eventos.
// É um predicado puro: sem I/O, sem estado mutável após a construção.
package filter

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Chaves canônicas de esporte (as mesmas gravadas em events.sport)
const (
	SportFootball = "football"
	SportTennis   = "tennis"
	SportHockey   = "hockey"
)

// aliases mapeia o nome do esporte vindo do feed para a chave canônica
var aliases = map[string]string{
	"football": SportFootball,
	"футбол":   SportFootball,
	"soccer":   SportFootball,
	"tennis":   SportTennis,
	"теннис":   SportTennis,
	"hockey":   SportHockey,
	"хоккей":   SportHockey,
}

// DefaultWhitelists são substrings (minúsculas) aceitas no nome do torneio
var DefaultWhitelists = map[string][]string{
	SportFootball: {
		"кубок мира",
		"лига чемпионов",
		"кубок уефа",
		"россия. премьер-лига",
		"англия. премьер-лига",
		"германия. бундеслига",
		"испания. примера дивизион",
		"италия. серия а",
		"португалия. премьер-лига",
		"бельгия. премьер-лига",
		"турция. суперлига",
		"бразилия. серия а",
		"world cup",
		"champions league",
		"premier league",
		"bundesliga",
		"la liga",
		"serie a",
	},
	SportHockey: {
		"кубок мира",
		"кхл",
		"нхл",
		"world cup",
		"khl",
		"nhl",
	},
	SportTennis: {
		"роллан-гаррос",
		"уимблдон",
		"кубок дэвиса",
		"usa open",
		"australian open",
		"davis cup",
		"roland garros",
		"wimbledon",
		"itf",
		"atp",
	},
}

// DefaultPlaceholders são nomes genéricos de time que invalidam o evento
var DefaultPlaceholders = []string{"хозяева", "гости", "home", "away"}

// Filter guarda esportes permitidos, whitelists e placeholders normalizados
type Filter struct {
	sports       map[string]struct{}
	whitelists   map[string][]string
	placeholders map[string]struct{}
}

// Option personaliza o filtro
type Option func(*Filter)

// WithWhitelist substitui a whitelist de um esporte
func WithWhitelist(sport string, substrings ...string) Option {
	return func(f *Filter) {
		key := Canonical(sport)
		if key == "" {
			key = normalize(sport)
		}
		list := make([]string, 0, len(substrings))
		for _, s := range substrings {
			if s = normalize(s); s != "" {
				list = append(list, s)
			}
		}
		f.whitelists[key] = list
	}
}

// WithPlaceholders substitui a lista de nomes genéricos de time
func WithPlaceholders(names ...string) Option {
	return func(f *Filter) {
		f.placeholders = make(map[string]struct{}, len(names))
		for _, n := range names {
			f.placeholders[normalize(n)] = struct{}{}
		}
	}
}

// New cria o filtro para o conjunto de esportes permitidos (vazio = football, tennis, hockey)
func New(allowedSports []string, opts ...Option) *Filter {
	if len(allowedSports) == 0 {
		allowedSports = []string{SportFootball, SportTennis, SportHockey}
	}

	f := &Filter{
		sports:       make(map[string]struct{}, len(allowedSports)),
		whitelists:   make(map[string][]string, len(DefaultWhitelists)),
		placeholders: make(map[string]struct{}, len(DefaultPlaceholders)),
	}
	for _, s := range allowedSports {
		key := Canonical(s)
		if key == "" {
			key = normalize(s)
		}
		f.sports[key] = struct{}{}
	}
	for sport, list := range DefaultWhitelists {
		f.whitelists[sport] = append([]string(nil), list...)
	}
	for _, p := range DefaultPlaceholders {
		f.placeholders[p] = struct{}{}
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Canonical devolve a chave canônica do esporte ou "" se desconhecido
func Canonical(sportName string) string {
	return aliases[normalize(sportName)]
}

// SportAllowed indica se o esporte (nome do feed ou chave) está no conjunto configurado
func (f *Filter) SportAllowed(sportName string) bool {
	key := Canonical(sportName)
	if key == "" {
		key = normalize(sportName)
	}
	_, ok := f.sports[key]
	return ok
}

// TournamentAllowed aplica apenas a whitelist de torneios do esporte
func (f *Filter) TournamentAllowed(sportName, tournament string) bool {
	if !f.SportAllowed(sportName) {
		return false
	}
	key := Canonical(sportName)
	if key == "" {
		key = normalize(sportName)
	}
	t := normalize(tournament)
	for _, kw := range f.whitelists[key] {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// IsPlaceholder indica nome genérico de time ("хозяева", "home", ...)
func (f *Filter) IsPlaceholder(team string) bool {
	_, ok := f.placeholders[normalize(team)]
	return ok
}

// Admit é o predicado completo sobre (esporte, torneio, time1, time2)
func (f *Filter) Admit(sportName, tournament, team1, team2 string) bool {
	if f.IsPlaceholder(team1) || f.IsPlaceholder(team2) {
		return false
	}
	return f.TournamentAllowed(sportName, tournament)
}

// Sports lista as chaves canônicas permitidas
func (f *Filter) Sports() []string {
	out := make([]string, 0, len(f.sports))
	for s := range f.sports {
		out = append(out, s)
	}
	return out
}

// yoFold trata "ё" como "е", grafia alternada com frequência no feed
var yoFold = strings.NewReplacer("ё", "е")

// normalize compõe em NFC (o feed às vezes manda "й" decomposto), baixa a caixa e apara
func normalize(s string) string {
	return yoFold.Replace(strings.ToLower(norm.NFC.String(strings.TrimSpace(s))))
}
