package service

import (
	"testing"

	"blockwatch/internal/models"
)

func TestFeedFanOut(t *testing.T) {
	feed := &ActionFeed{}
	id1, ch1 := feed.Subscribe(1)
	id2, ch2 := feed.Subscribe(1)
	defer feed.Unsubscribe(id1)
	defer feed.Unsubscribe(id2)

	feed.Publish(models.Action{ID: 7, SourceID: "42", SinkID: "9", Type: models.ActionTypeBlock})
	for _, ch := range []<-chan models.Action{ch1, ch2} {
		got := <-ch
		if got.ID != 7 || got.SinkID != "9" {
			t.Fatalf("unexpected event: %+v", got)
		}
	}
}

func TestFeedDropsWhenSubscriberLags(t *testing.T) {
	feed := &ActionFeed{}
	id, ch := feed.Subscribe(1)
	defer feed.Unsubscribe(id)

	feed.Publish(models.Action{ID: 1})
	feed.Publish(models.Action{ID: 2})
	if got := feed.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}
	if got := <-ch; got.ID != 1 {
		t.Fatalf("buffered event lost: %+v", got)
	}
}

func TestFeedUnsubscribeClosesChannel(t *testing.T) {
	feed := &ActionFeed{}
	id, ch := feed.Subscribe(1)
	feed.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	// Publishing after the last subscriber left is a no-op.
	feed.Publish(models.Action{ID: 3})
	feed.Unsubscribe(id)
}

func TestFeedNilReceiver(t *testing.T) {
	var feed *ActionFeed
	feed.Publish(models.Action{ID: 1})
	if got := feed.Dropped(); got != 0 {
		t.Fatalf("nil feed reports drops: %d", got)
	}
}
