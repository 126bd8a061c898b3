package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AaronLay10/NarrativeEngine/internal/narrative"
	"github.com/AaronLay10/NarrativeEngine/internal/orchestrator"
)

// play drives an active session from in until the story ends or the
// player types "q".
func play(rt *orchestrator.Runtime, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		view := rt.View()
		switch view.State {
		case orchestrator.StateFinished:
			fmt.Fprintln(out, "-- the end --")
			return nil
		case orchestrator.StateFailed:
			return fmt.Errorf("story failed at %q", view.NodeID)
		case orchestrator.StateIdle:
			return nil
		}

		render(out, view)
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "q" {
			return rt.Stop()
		}

		index := narrative.NoIndex
		if len(view.Choices) > 0 {
			n, err := strconv.Atoi(line)
			if err != nil {
				fmt.Fprintln(out, "enter a choice number, or q to quit")
				continue
			}
			index = n - 1
		}

		_, err := rt.Advance(index)
		switch {
		case err == nil:
		case errors.Is(err, orchestrator.ErrChoiceUnavailable):
			fmt.Fprintln(out, "that choice is not available")
		case errors.Is(err, narrative.ErrIndexOutOfRange), errors.Is(err, narrative.ErrIndexRequired):
			fmt.Fprintln(out, "no such choice")
		default:
			return err
		}
	}
}

func render(out io.Writer, view orchestrator.View) {
	fmt.Fprintf(out, "\n%s\n", view.Text)
	if len(view.Choices) == 0 {
		fmt.Fprint(out, "[enter] ")
		return
	}
	for _, c := range view.Choices {
		mark := ""
		if !c.Available {
			mark = " (unavailable)"
		}
		fmt.Fprintf(out, "  %d) %s%s\n", c.Index+1, c.Text, mark)
	}
	fmt.Fprint(out, "> ")
}
