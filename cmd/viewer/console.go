package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"mapping-viewer/internal/models"
	"mapping-viewer/internal/session"
	"mapping-viewer/internal/style"
)

const consoleHelp = `commands:
  <question>        ask the agent
  /style <name>     switch the basemap
  /styles           list basemaps
  /pano <image id>  open a panorama
  /close            close the panorama
  /hover <marker>   show a hotspot tooltip
  /click <marker>   follow a nearby-panorama hotspot
  /clear            reset the conversation and highlights
  /state            print the viewer state
  /summary          count campaign features per type
  /quit             exit`

// console turns input lines into session calls. handle runs on the event loop.
type console struct {
	ctx     context.Context
	session *session.Session
	out     io.Writer
}

func newConsole(ctx context.Context, s *session.Session, out io.Writer) *console {
	c := &console{ctx: ctx, session: s, out: out}
	s.Styles().OnComplete(func(r style.Result) {
		if r.Err != nil {
			c.printf("style %s failed: %v\n", r.To, r.Err)
			return
		}
		c.printf("style %s ready (%s, %s)\n", r.To, r.Trigger, r.Duration)
	})
	return c
}

func (c *console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

// handle reports whether the console should exit.
func (c *console) handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.ask(line)
		return false
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		c.printf("%s\n", consoleHelp)
	case "/styles":
		c.printf("%s (current %q)\n", strings.Join(c.session.Styles().Styles(), ", "), c.session.Styles().Current())
	case "/style":
		if len(args) != 1 {
			c.printf("usage: /style <name>\n")
			return false
		}
		if err := c.session.SwapStyle(args[0]); err != nil {
			c.printf("cannot switch style: %v\n", err)
		}
	case "/pano":
		id, ok := c.intArg(args, "/pano <image id>")
		if !ok {
			return false
		}
		if err := c.session.OpenPanorama(id); err != nil {
			c.printf("cannot open panorama %d: %v\n", id, err)
			return false
		}
		c.printf("panorama %d open\n", id)
	case "/close":
		if err := c.session.ClosePanorama(); err != nil {
			c.printf("cannot close panorama: %v\n", err)
		}
	case "/hover":
		if len(args) != 1 {
			c.printf("usage: /hover <marker>\n")
			return false
		}
		tip, ok := c.session.Hover(args[0])
		if !ok {
			c.printf("no feature hotspot %s\n", args[0])
			return false
		}
		c.printf("%s\n", tip)
	case "/click":
		if len(args) != 1 {
			c.printf("usage: /click <marker>\n")
			return false
		}
		if !c.session.Click(args[0]) {
			c.printf("no nearby hotspot %s\n", args[0])
		}
	case "/clear":
		c.session.Reset(c.ctx, func(err error) {
			if err != nil {
				c.printf("backend memory not cleared: %v\n", err)
			}
			c.printf("conversation cleared\n")
		})
	case "/state":
		c.printf("%s\n", c.session.View())
	case "/summary":
		c.summary()
	default:
		c.printf("unknown command %s, try /help\n", cmd)
	}
	return false
}

func (c *console) summary() {
	d := c.session.Dataset()
	if d == nil {
		c.printf("campaign not loaded\n")
		return
	}
	counts := d.Summary()
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		c.printf("%-16s %d\n", t, counts[models.FeatureType(t)])
	}
}

func (c *console) intArg(args []string, usage string) (int, bool) {
	if len(args) != 1 {
		c.printf("usage: %s\n", usage)
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		c.printf("usage: %s\n", usage)
		return 0, false
	}
	return id, true
}

func (c *console) ask(question string) {
	err := c.session.Ask(c.ctx, question, func(turn models.ConversationTurn) {
		if turn.Error != "" {
			c.printf("! %s\n", turn.Error)
			return
		}
		c.printf("> %s\n", turn.Answer)
	})
	if err != nil {
		c.printf("cannot ask: %v\n", err)
	}
}
