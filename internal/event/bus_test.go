package event

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock_dash/internal/domain"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	all := bus.Subscribe("all", 4)
	failures := bus.Subscribe("failures", 4, FetchFailed)

	q := domain.NewQuote("AAPL", decimal.NewFromInt(10), decimal.NewFromInt(9), 1, time.Now())
	bus.Publish(NewQuoteUpdated(q))
	bus.Publish(NewFetchFailed("BAD", &domain.FetchDataError{Symbol: "BAD", Reason: "empty"}, time.Now()))

	if got := len(all.C); got != 2 {
		t.Fatalf("all subscriber got %d events, want 2", got)
	}
	if got := len(failures.C); got != 1 {
		t.Fatalf("filtered subscriber got %d events, want 1", got)
	}

	first := <-all.C
	second := <-all.C
	if first.Seq >= second.Seq {
		t.Errorf("sequence not increasing: %d then %d", first.Seq, second.Seq)
	}
	if first.Quote != q {
		t.Error("quote payload should be shared by pointer")
	}

	ev := <-failures.C
	if ev.ErrorKind != "data" || ev.Symbol != "BAD" {
		t.Errorf("unexpected failure event: %+v", ev)
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	bus.Subscribe("slow", 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(NewFetchFailed("X", errors.New("boom"), time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if bus.Dropped() != 9 {
		t.Errorf("Dropped() = %d, want 9", bus.Dropped())
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("ws-1", 1)
	bus.Unsubscribe("ws-1")

	if _, ok := <-sub.C; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
	if bus.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", bus.SubscriberCount())
	}

	bus.Close()
	late := bus.Subscribe("late", 1)
	if _, ok := <-late.C; ok {
		t.Error("subscribing to a closed bus should yield a closed channel")
	}
	bus.Publish(NewFetchFailed("X", errors.New("boom"), time.Now()))
}
