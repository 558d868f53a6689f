package app

import (
	"context"
	"log/slog"

	"github.com/eiannone/keyboard"

	"github.com/hamtools/rigscan/internal/scan"
)

// listenKeys starts the operator key handler: space toggles the manual
// pause gate, enter releases a confirm hold, q quits. The returned
// function restores the terminal.
func listenKeys(cancel context.CancelFunc, pause *scan.Manual, confirm chan<- struct{}, logger *slog.Logger) (func(), error) {
	if err := keyboard.Open(); err != nil {
		return nil, err
	}

	go func() {
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return // terminal restored by the close function
			}

			switch {
			case char == 'q' || char == 'Q' || key == keyboard.KeyCtrlC:
				logger.Info("quit requested")
				cancel()
				return

			case key == keyboard.KeySpace:
				if pause.Toggle() {
					logger.Info("scan paused, press space to resume")
				} else {
					logger.Info("scan resumed")
				}

			case key == keyboard.KeyEnter:
				select {
				case confirm <- struct{}{}:
				default: // not holding, drop it
				}
			}
		}
	}()

	return func() { _ = keyboard.Close() }, nil
}
