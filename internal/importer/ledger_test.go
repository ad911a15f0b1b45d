package importer

import "testing"

func TestExpandKeys(t *testing.T) {
	units := Expand(ParsedRow{EntryNumber: "E7", Quantity: 3})
	if len(units) != 3 {
		t.Fatalf("len=%d", len(units))
	}
	for i, u := range units {
		want := UnitKey("E7", i+1)
		if u.Key == nil || *u.Key != want || u.Index != i+1 {
			t.Fatalf("unit %d = %+v, want key %s", i, u, want)
		}
	}
	if *units[2].Key != "E7-3" {
		t.Fatalf("key=%s", *units[2].Key)
	}
}

func TestExpandWithoutEntryNeverDuplicate(t *testing.T) {
	l := NewLedger([]string{"-1", "-2"})
	units := Expand(ParsedRow{Quantity: 2})
	for _, u := range units {
		if u.Key != nil {
			t.Fatalf("unexpected key %s", *u.Key)
		}
		if !l.Admit(u.Key) {
			t.Fatal("unit without entry number flagged as duplicate")
		}
		if !l.Admit(u.Key) {
			t.Fatal("second admit of keyless unit must also pass")
		}
	}
}

func TestLedgerAdmit(t *testing.T) {
	l := NewLedger([]string{"E1-1"})
	if l.Admit(strp("E1-1")) {
		t.Fatal("persisted key admitted")
	}
	if !l.Admit(strp("E1-2")) {
		t.Fatal("new key rejected")
	}
	if l.Admit(strp("E1-2")) {
		t.Fatal("key queued in this run admitted twice")
	}
	if l.Len() != 2 {
		t.Fatalf("len=%d", l.Len())
	}
}
