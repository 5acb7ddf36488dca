package ajax

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Actions understood by the admin-ajax endpoint.
const (
	ActionPackageDetails = "soltour_get_package_details"
	ActionSelectPackage  = "soltour_select_package"
)

// ErrUnavailable is returned when the endpoint cannot be reached or does not
// offer the requested action.
var ErrUnavailable = errors.New("ajax: endpoint unavailable")

// RejectedError is returned when the endpoint answers with success=false.
type RejectedError struct {
	Action string
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("ajax: %s rejected", e.Action)
	}
	return fmt.Sprintf("ajax: %s rejected: %s", e.Action, e.Reason)
}

// Client posts form-encoded actions to a WordPress admin-ajax endpoint.
type Client struct {
	endpoint   string
	nonce      string
	httpClient *http.Client
}

// NewClient creates a new Client.
func NewClient(endpoint, nonce string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		nonce:    nonce,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// DetailsRequest identifies the package whose hotel details are requested.
type DetailsRequest struct {
	AvailToken   string
	BudgetID     string
	HotelCode    string
	ProviderCode string
}

// Details is the hotel content returned by the details action.
type Details struct {
	Description string
	Facilities  []string
}

// PackageDetails fetches descriptive hotel content for a package.
func (c *Client) PackageDetails(ctx context.Context, req DetailsRequest) (Details, error) {
	form := url.Values{}
	form.Set("avail_token", req.AvailToken)
	form.Set("budget_id", req.BudgetID)
	form.Set("hotel_code", req.HotelCode)
	form.Set("provider_code", req.ProviderCode)

	data, err := c.post(ctx, ActionPackageDetails, form)
	if err != nil {
		return Details{}, err
	}

	var payload struct {
		HotelDetails *detailsDoc `json:"hotelDetails"`
		Details      *detailsDoc `json:"details"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return Details{}, fmt.Errorf("failed to parse details: %w", err)
		}
	}

	doc := payload.HotelDetails
	if doc == nil {
		doc = payload.Details
	}
	if doc == nil {
		return Details{}, nil
	}
	return doc.details(), nil
}

// SelectPackage asks the backend to select a package for quotation and
// returns its confirmation message.
func (c *Client) SelectPackage(ctx context.Context, budgetID, hotelCode, providerCode string) (string, error) {
	form := url.Values{}
	form.Set("budget_id", budgetID)
	form.Set("hotel_code", hotelCode)
	form.Set("provider_code", providerCode)

	data, err := c.post(ctx, ActionSelectPackage, form)
	if err != nil {
		return "", err
	}
	return message(data), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// post sends action and returns the data member of a successful envelope.
func (c *Client) post(ctx context.Context, action string, form url.Values) (json.RawMessage, error) {
	if c.endpoint == "" {
		return nil, ErrUnavailable
	}
	form.Set("action", action)
	form.Set("nonce", c.nonce)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNotImplemented, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned status %d: %s", action, resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !env.Success {
		return nil, &RejectedError{Action: action, Reason: message(env.Data)}
	}
	return env.Data, nil
}

type detailsDoc struct {
	Description     string          `json:"description"`
	LongDescription string          `json:"longDescription"`
	Facilities      json.RawMessage `json:"facilities"`
	Hotel           *struct {
		Description string `json:"description"`
	} `json:"hotel"`
}

func (d *detailsDoc) details() Details {
	out := Details{Facilities: facilities(d.Facilities)}
	switch {
	case d.Hotel != nil && strings.TrimSpace(d.Hotel.Description) != "":
		out.Description = strings.TrimSpace(d.Hotel.Description)
	case strings.TrimSpace(d.Description) != "":
		out.Description = strings.TrimSpace(d.Description)
	default:
		out.Description = strings.TrimSpace(d.LongDescription)
	}
	return out
}

// facilities accepts a list of names, a list of {name|description} objects or
// a single comma separated string.
func facilities(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return compact(names)
	}

	var objs []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(raw, &objs); err == nil {
		names = make([]string, 0, len(objs))
		for _, o := range objs {
			names = append(names, firstNonEmpty(o.Name, o.Description))
		}
		return compact(names)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return compact(strings.Split(s, ","))
	}
	return nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// message extracts a human readable message from a data member that is either
// a string or an object with a message field.
func message(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(data, &obj)
	return obj.Message
}
