// Package event provides the in-process event bus and the notification
// dispatchers of agentwatch.
//
// The watcher publishes observability signals ([QualityWarningEvent],
// [ExtractionFailedEvent], [LockClearedEvent], [HookReceivedEvent]) and
// hands notifications to a [Dispatcher]. [BusDispatcher] turns them into
// [NotificationEvent]s so any sender can subscribe without the watcher
// knowing about it.
//
// # Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeNotification, func(e event.Event) {
//	    n := e.(event.NotificationEvent).Notification
//	    fmt.Println(n.AgentID, n.Text)
//	})
//	disp := event.NewBusDispatcher(bus)
//	_ = disp.Dispatch(ctx, event.NewNotification("cam-1", event.OutcomeSend, event.KindQuestion, "Proceed?", time.Now()))
package event
