package taxonomy

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"sport", KindSport, false},
		{"Segment", KindSegment, false},
		{" segment ", KindSegment, false},
		{"event", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownKind) {
					t.Fatalf("err = %v, want ErrUnknownKind", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseKind(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver()
	r.Put(Record{ID: 1, Kind: KindSport, Name: "Футбол"})
	r.Put(Record{ID: 10, ParentID: 1, Kind: KindSegment, Name: "Англия. Премьер-лига"})
	r.Put(Record{ID: 11, ParentID: 2, Kind: KindSegment, Name: "Хоккей. КХЛ"})

	got, err := r.Resolve(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Sport != "Футбол" || got.Tournament != "Англия. Премьер-лига" {
		t.Errorf("Resolve(10) = %+v", got)
	}

	if _, err := r.Resolve(11); !errors.Is(err, ErrUnresolved) {
		t.Errorf("missing parent: err = %v, want ErrUnresolved", err)
	}
	if _, err := r.Resolve(99); !errors.Is(err, ErrUnresolved) {
		t.Errorf("missing segment: err = %v, want ErrUnresolved", err)
	}
	if _, err := r.Resolve(1); !errors.Is(err, ErrNotSegment) {
		t.Errorf("sport node: err = %v, want ErrNotSegment", err)
	}

	// parent chega depois: a resolução passa a funcionar
	r.Put(Record{ID: 2, Kind: KindSport, Name: "Хоккей"})
	got, err = r.Resolve(11)
	if err != nil || got.Sport != "Хоккей" {
		t.Errorf("after parent arrived: %+v, %v", got, err)
	}
}

func TestPutLastWriteWins(t *testing.T) {
	r := NewResolver()
	r.Put(Record{ID: 1, Kind: KindSport, Name: "Football"})
	r.Put(Record{ID: 1, Kind: KindSport, Name: "Футбол"})
	rec, ok := r.Get(1)
	if !ok || rec.Name != "Футбол" {
		t.Errorf("Get(1) = %+v", rec)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	snap := r.Snapshot()
	snap[1] = Record{ID: 1, Name: "mutated"}
	if rec, _ := r.Get(1); rec.Name != "Футбол" {
		t.Error("snapshot must not alias the resolver map")
	}
}
