package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stock_dash/internal/domain"
	"stock_dash/internal/event"
)

func TestAlertBook_Add(t *testing.T) {
	m, _, _ := newTestManager(t, "AAPL")
	book := NewAlertBook(m, event.NewBus(), nil)

	if _, err := book.Add("AAPL", d("120"), false); !errors.Is(err, domain.ErrNotYetAvailable) {
		t.Errorf("Add without cached quote = %v, want ErrNotYetAvailable", err)
	}

	if _, err := m.GetQuote(context.Background(), "AAPL"); err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	alert, err := book.Add("aapl", d("120"), false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if alert.Direction != domain.AlertUp || alert.ID == "" || !alert.Active {
		t.Errorf("alert = %+v", alert)
	}

	var ve *domain.ValidationError
	if _, err := book.Add("AAPL", d("0"), false); !errors.As(err, &ve) {
		t.Errorf("zero target = %v, want ValidationError", err)
	}

	if err := book.Remove(alert.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := book.Remove(alert.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}
}

func TestAlertBook_TriggersOnQuoteUpdate(t *testing.T) {
	m, provider, clock := newTestManager(t, "AAPL")
	bus := event.NewBus()
	defer bus.Close()
	m.opts.Publisher = bus
	book := NewAlertBook(m, bus, nil)
	triggered := bus.Subscribe("test", 8, event.AlertTriggered)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go book.Run(ctx)

	if _, err := m.GetQuote(ctx, "AAPL"); err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	once, err := book.Add("AAPL", d("110"), false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := book.Add("AAPL", d("105"), true); err != nil {
		t.Fatalf("Add: %v", err)
	}
	for bus.SubscriberCount() < 2 {
		time.Sleep(time.Millisecond)
	}

	provider.setPrice("AAPL", 115)
	clock.Advance(time.Second)
	m.RefreshAll(ctx)

	got := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case ev := <-triggered.C:
			got[ev.Alert.ID] = true
		case <-timeout:
			t.Fatalf("only %d alerts triggered", len(got))
		}
	}

	for _, a := range book.List() {
		if a.ID == once.ID && a.Active {
			t.Error("non-persistent alert should be deactivated after firing")
		}
		if a.ID != once.ID && !a.Active {
			t.Error("persistent alert should stay active")
		}
	}
}
