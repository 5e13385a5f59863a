// Package client is the task-list state controller the web UI runs: it holds
// the session and the task list, drives the HTTP surface, and keeps itself in
// sync from the change-feed.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/net/websocket"

	"shadowlights-backend/internal/realtime"
	"shadowlights-backend/internal/tasks"
)

type Controller struct {
	baseURL string
	httpc   *http.Client
	log     *slog.Logger

	mu    sync.Mutex
	token string
	tasks []tasks.Task

	ws   *websocket.Conn
	done chan struct{}
	wg   sync.WaitGroup
}

func New(baseURL string, log *slog.Logger) *Controller {
	return &Controller{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		log:     log,
	}
}

// --- session ---

type authResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

func (c *Controller) SignUp(email, password string) error {
	return c.authenticate("/auth/register", email, password)
}

func (c *Controller) SignIn(email, password string) error {
	return c.authenticate("/auth/login", email, password)
}

func (c *Controller) authenticate(path, email, password string) error {
	var out authResponse
	err := c.do(http.MethodPost, path, map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return c.Refresh()
}

func (c *Controller) SignOut() {
	c.mu.Lock()
	c.token = ""
	c.tasks = nil
	c.mu.Unlock()
}

func (c *Controller) signedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// --- task list ---

// Tasks returns a snapshot of the current list.
func (c *Controller) Tasks() []tasks.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tasks.Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

// Refresh refetches the whole list. Without a session it quietly clears
// instead of failing: the unfiltered feed may wake us up for rows we cannot
// read.
func (c *Controller) Refresh() error {
	if !c.signedIn() {
		return nil
	}

	var list []tasks.Task
	if err := c.do(http.MethodGet, "/tasks", nil, &list); err != nil {
		return err
	}

	c.mu.Lock()
	c.tasks = list
	c.mu.Unlock()
	return nil
}

func (c *Controller) AddTask(title string) (tasks.Task, error) {
	var t tasks.Task
	err := c.do(http.MethodPost, "/tasks", map[string]string{"title": title}, &t)
	if err != nil {
		return tasks.Task{}, err
	}
	return t, c.Refresh()
}

func (c *Controller) SetComplete(id string, isComplete bool) error {
	var t tasks.Task
	err := c.do(http.MethodPut, "/tasks", map[string]any{
		"id":          id,
		"is_complete": isComplete,
	}, &t)
	if err != nil {
		return err
	}
	return c.Refresh()
}

func (c *Controller) DeleteTask(id string) error {
	var out map[string]string
	err := c.do(http.MethodDelete, "/tasks", map[string]string{"id": id}, &out)
	if err != nil {
		return err
	}
	return c.Refresh()
}

// --- change-feed subscription ---

// Subscribe dials the change-feed and runs the reducer until Close. Insert
// and update events trigger a full refetch; delete events remove the id
// locally without a round trip.
func (c *Controller) Subscribe() error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/realtime"

	ws, err := websocket.Dial(wsURL, "", c.baseURL)
	if err != nil {
		return fmt.Errorf("dial change-feed: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	c.done = make(chan struct{})

	events := make(chan realtime.Event)
	c.wg.Add(2)

	go func() {
		defer c.wg.Done()
		defer close(events)
		for {
			var ev realtime.Event
			if err := websocket.JSON.Receive(ws, &ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-c.done:
				return
			}
		}
	}()

	go func() {
		defer c.wg.Done()
		for ev := range events {
			c.apply(ev)
		}
	}()

	return nil
}

// apply is the reducer over typed change events.
func (c *Controller) apply(ev realtime.Event) {
	switch ev.Type {
	case realtime.EventInsert, realtime.EventUpdate:
		if err := c.Refresh(); err != nil {
			c.log.Warn("refetch after change event failed", "error", err)
		}
	case realtime.EventDelete:
		c.mu.Lock()
		kept := c.tasks[:0]
		for _, t := range c.tasks {
			if t.ID != ev.TaskID {
				kept = append(kept, t)
			}
		}
		c.tasks = kept
		c.mu.Unlock()
	}
}

// Close tears the subscription down and waits for the reducer to drain.
func (c *Controller) Close() {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws == nil {
		return
	}
	close(c.done)
	_ = ws.Close()
	c.wg.Wait()
}

// --- plumbing ---

func (c *Controller) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
