package bootstrap

import (
	"context"
	"time"

	"freeflow/internal/backend"
	"freeflow/internal/config"
	"freeflow/internal/domain"
	"freeflow/internal/hotkey"
	"freeflow/internal/ports"
	"freeflow/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Runtime  *usecase.Runtime
	Settings config.Settings
}

// Build wires all coordinator dependencies for the current runtime.
func Build(events ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return Services{}, err
	}
	settings, err := config.Load(path)
	if err != nil {
		return Services{}, err
	}

	client := backend.NewClient(settings.Backend.BaseURL(), settings.Backend.RequestTimeout)
	supervisor := backend.NewSupervisor(settings.Backend, client)

	// The channel handler closes over the runtime, which in turn owns the
	// channel; the pointer is filled in before Connect can ever run.
	var runtime *usecase.Runtime
	channel := backend.NewChannel(
		settings.Backend.WebsocketURL(),
		settings.Backend.ReconnectDelay,
		func(event domain.StatusEvent) { runtime.HandleEvent(event) },
	)

	runtime = usecase.NewRuntime(
		client,
		supervisor,
		channel,
		events,
		clipboard,
		settings.Backend.RequestTimeout,
	)

	coordinator := hotkey.NewCoordinator(
		hotkey.NewOSRegistrar(),
		delegatedHotkey{client: client, timeout: settings.Backend.RequestTimeout},
		runtime.Recorder(),
	)
	runtime.AttachActivation(coordinator)

	return Services{Runtime: runtime, Settings: settings}, nil
}

// delegatedHotkey adapts the command client to the coordinator's
// delegated-detection contract.
type delegatedHotkey struct {
	client  ports.CommandClient
	timeout time.Duration
}

func (d delegatedHotkey) Enable(combo []string, mode domain.ActivationMode) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.client.EnableHotkey(ctx, combo, mode)
}

func (d delegatedHotkey) Disable() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.client.DisableHotkey(ctx)
}
