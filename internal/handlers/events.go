package handlers

import (
	"bufio"
	"bytes"
	"io"
	"time"

	"github.com/gofiber/fiber/v3"

	"giftlist/internal/family"
)

// Events streams re-rendered panels to the browser as Server-Sent Events.
// Each event is named after the panel it replaces.
func (h *AppHandler) Events(c fiber.Ctx) error {
	ctrl, err := controller(c, h.sessions)
	if err != nil {
		return err
	}

	myList, cancelMyList := ctrl.Events().Subscribe(family.PanelMyList)
	directory, cancelDirectory := ctrl.Events().Subscribe(family.PanelDirectory)
	recipient, cancelRecipient := ctrl.Events().Subscribe(family.PanelRecipient)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.log.WithField("viewer_id", ctrl.Viewer().ID)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancelMyList()
		defer cancelDirectory()
		defer cancelRecipient()

		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()

		// Catch up on anything that changed between page load and connect.
		for _, panel := range family.Panels {
			if err := h.pushPanel(w, ctrl, panel); err != nil {
				log.WithError(err).Debug("Event stream closed")
				return
			}
		}
		if err := w.Flush(); err != nil {
			return
		}

		for {
			var err error
			select {
			case <-ctrl.Done():
				return
			case <-myList:
				err = h.pushPanel(w, ctrl, family.PanelMyList)
			case <-directory:
				err = h.pushPanel(w, ctrl, family.PanelDirectory)
			case <-recipient:
				err = h.pushPanel(w, ctrl, family.PanelRecipient)
			case <-keepAlive.C:
				_, err = w.WriteString(": keep-alive\n\n")
			}
			if err == nil {
				err = w.Flush()
			}
			if err != nil {
				log.WithError(err).Debug("Event stream closed")
				return
			}
			ctrl.Touch()
		}
	})
}

func (h *AppHandler) pushPanel(w io.Writer, ctrl *family.Controller, panel string) error {
	var buf bytes.Buffer
	if err := h.views.Render(&buf, panelTemplate(panel), panelData(ctrl, panel)); err != nil {
		h.log.WithError(err).WithField("panel", panel).Error("Failed to render panel")
		return nil
	}
	return writeEvent(w, panel, buf.Bytes())
}

// writeEvent frames data as one SSE event. Every line of data gets its own
// data field so multi-line HTML survives the framing.
func writeEvent(w io.Writer, event string, data []byte) error {
	var buf bytes.Buffer
	buf.WriteString("event: ")
	buf.WriteString(event)
	buf.WriteByte('\n')
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(bytes.TrimSuffix(line, []byte("\r")))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	_, err := w.Write(buf.Bytes())
	return err
}
