package occupancy

import (
	"errors"
	"testing"
	"time"
)

func TestStatusPublisher(t *testing.T) {
	s := NewStatusPublisher(5 * time.Second)

	steps := []struct {
		at    int
		count int
		want  PublishReason
	}{
		{0, 0, PublishChange}, // first tick always publishes
		{50, 0, PublishNone},
		{4950, 0, PublishNone},
		{5000, 0, PublishHeartbeat},
		{5050, 0, PublishNone},
		{6000, 1, PublishChange},
		{10950, 1, PublishNone}, // change reset the heartbeat timer
		{11000, 1, PublishHeartbeat},
		{11050, 0, PublishChange},
	}

	for _, st := range steps {
		if got := s.Next(st.count, ms(st.at)); got != st.want {
			t.Errorf("Next(count=%d, %dms) = %v, want %v", st.count, st.at, got, st.want)
		}
	}
}

func TestStatusPublisher_Reset(t *testing.T) {
	s := NewStatusPublisher(5 * time.Second)
	s.Next(3, ms(0))

	s.Reset()
	if got := s.Next(3, ms(100)); got != PublishChange {
		t.Errorf("Next after Reset = %v, want change", got)
	}
	if got := s.Next(3, ms(200)); got != PublishNone {
		t.Errorf("Next = %v, want none", got)
	}
}

func TestParseCapacity(t *testing.T) {
	tests := []struct {
		payload string
		want    int
		wantErr bool
	}{
		{`{"max_people": 4}`, 4, false},
		{`{"max_people": 0}`, 0, false},
		{`{"max_people": 4, "extra": true}`, 4, false},
		{`{"max_people": -1}`, 0, true},
		{`{"max_people": 2.5}`, 0, true},
		{`{"max_people": "4"}`, 0, true},
		{`{"max_people": null}`, 0, true},
		{`{}`, 0, true},
		{`[4]`, 0, true},
		{`{"max_people":`, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseCapacity([]byte(tt.payload))
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidCapacity) {
				t.Errorf("ParseCapacity(%s) error = %v, want ErrInvalidCapacity", tt.payload, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseCapacity(%s) = %d, %v, want %d", tt.payload, got, err, tt.want)
		}
	}
}
