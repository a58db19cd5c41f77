package eventbridge

import (
	"testing"

	"github.com/kingrea/greenlight/internal/pipeline"
)

func stageEvent(t pipeline.EventType, id pipeline.StageID) pipeline.Event {
	return pipeline.Event{Type: t, Stage: id, Generation: 1}
}

func TestRouterDeliversToEverySubscriber(t *testing.T) {
	router := NewRouter(RouterWithReplayLimit(0))
	a := router.Subscribe()
	defer a.Close()
	b := router.Subscribe()
	defer b.Close()
	router.Route(stageEvent(pipeline.EventStageComplete, pipeline.StageNormalize))
	for _, sub := range []Subscription{a, b} {
		select {
		case got := <-sub.Events:
			if got.Stage != pipeline.StageNormalize {
				t.Fatalf("unexpected event %+v", got)
			}
		default:
			t.Fatalf("expected delivery")
		}
	}
	if router.Subscribers() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", router.Subscribers())
	}
}

func TestRouterReplaysCurrentRunToLateSubscribers(t *testing.T) {
	router := NewRouter(RouterWithReplayLimit(8))
	router.Route(pipeline.Event{Type: pipeline.EventRunStart, Generation: 1})
	router.Route(pipeline.Event{Type: pipeline.EventRunComplete, Generation: 1})
	router.Route(pipeline.Event{Type: pipeline.EventRunStart, Generation: 2})
	router.Route(stageEvent(pipeline.EventStageStart, pipeline.StageNormalize))
	sub := router.Subscribe()
	defer sub.Close()
	first := <-sub.Events
	second := <-sub.Events
	if first.Type != pipeline.EventRunStart || first.Generation != 2 || second.Type != pipeline.EventStageStart {
		t.Fatalf("unexpected replay %+v %+v", first, second)
	}
	select {
	case extra := <-sub.Events:
		t.Fatalf("replay leaked previous run: %+v", extra)
	default:
	}
}

func TestRouterOverflowKeepsTerminalEvents(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(1), RouterWithReplayLimit(0))
	sub := router.Subscribe()
	defer sub.Close()
	router.Route(stageEvent(pipeline.EventStageComplete, pipeline.StageDecide))
	router.Route(pipeline.Event{Type: pipeline.EventRunFailed})
	if got := <-sub.Events; got.Type != pipeline.EventRunFailed {
		t.Fatalf("expected terminal event to replace stage event, got %s", got.Type)
	}

	router.Route(pipeline.Event{Type: pipeline.EventRunComplete})
	router.Route(stageEvent(pipeline.EventStageComplete, pipeline.StageDecide))
	if got := <-sub.Events; got.Type != pipeline.EventRunComplete {
		t.Fatalf("terminal event must survive overflow, got %s", got.Type)
	}
}

func TestRouterOverflowPrefersDroppingStageStart(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(1), RouterWithReplayLimit(0))
	sub := router.Subscribe()
	defer sub.Close()
	router.Route(stageEvent(pipeline.EventStageComplete, pipeline.StageNormalize))
	router.Route(stageEvent(pipeline.EventStageStart, pipeline.StageDecide))
	if got := <-sub.Events; got.Type != pipeline.EventStageComplete {
		t.Fatalf("expected stage.complete to survive, got %s", got.Type)
	}
}

func TestRouterOverflowPreservesOrder(t *testing.T) {
	router := NewRouter(RouterWithSubscriberCapacity(2), RouterWithReplayLimit(0))
	sub := router.Subscribe()
	defer sub.Close()
	router.Route(pipeline.Event{Type: pipeline.EventRunComplete, Generation: 1})
	router.Route(pipeline.Event{Type: pipeline.EventRunStart, Generation: 2})
	router.Route(pipeline.Event{Type: pipeline.EventStageStart, Stage: pipeline.StageNormalize, Generation: 2})
	router.Route(pipeline.Event{Type: pipeline.EventRunFailed, Generation: 2})

	want := []struct {
		kind pipeline.EventType
		gen  uint64
	}{
		{pipeline.EventRunComplete, 1},
		{pipeline.EventRunFailed, 2},
	}
	for i, w := range want {
		got := <-sub.Events
		if got.Type != w.kind || got.Generation != w.gen {
			t.Fatalf("event %d: got %s(g%d), want %s(g%d)", i, got.Type, got.Generation, w.kind, w.gen)
		}
	}
}

func TestRouterCloseEndsSubscriptions(t *testing.T) {
	router := NewRouter()
	sub := router.Subscribe()
	router.Close()
	if _, ok := <-sub.Events; ok {
		t.Fatalf("expected closed channel")
	}
	sub.Close()
	router.Route(pipeline.Event{Type: pipeline.EventRunStart})
	if router.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after close")
	}
}
