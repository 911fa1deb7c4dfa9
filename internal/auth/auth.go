// Package auth talks to the user service: per-subscriber profile lookups
// for rendering, and birthday-based subscriber queries for the scheduler.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// UserData is the profile slice the pipeline needs: an address per channel
// plus the fields templates commonly reference.
type UserData struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phone_number"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	TimeZone    string    `json:"time_zone"`
}

// RenderContext returns the user fields merged into template contexts.
func (u *UserData) RenderContext() map[string]any {
	return map[string]any{
		"user_id":    u.ID.String(),
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
}

// Service is the user-service client surface.
type Service interface {
	GetUserData(ctx context.Context, userID uuid.UUID) (*UserData, error)
	GetUsersByBirthday(ctx context.Context, month, day, page, pageSize int) ([]uuid.UUID, error)
}

// Client is the HTTP implementation.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) GetUserData(ctx context.Context, userID uuid.UUID) (*UserData, error) {
	endpoint := fmt.Sprintf("%s/api/v1/users/%s", c.baseURL, userID)

	var user UserData
	if err := c.getJSON(ctx, endpoint, &user); err != nil {
		return nil, fmt.Errorf("failed to get user data: %w", err)
	}
	return &user, nil
}

func (c *Client) GetUsersByBirthday(ctx context.Context, month, day, page, pageSize int) ([]uuid.UUID, error) {
	q := url.Values{}
	q.Set("birth_month", strconv.Itoa(month))
	q.Set("birth_day", strconv.Itoa(day))
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	endpoint := fmt.Sprintf("%s/api/v1/users?%s", c.baseURL, q.Encode())

	var ids []uuid.UUID
	if err := c.getJSON(ctx, endpoint, &ids); err != nil {
		return nil, fmt.Errorf("failed to get users by birthday: %w", err)
	}
	return ids, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("user service returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
