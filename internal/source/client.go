package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veragate-systems/attendance-etl/internal/credential"
	"github.com/veragate-systems/attendance-etl/internal/models"
)

// Client talks to the access-control gateway's JSON API. It implements both
// EntityStore and EventQuerier. Entities fetched by Load land in a local
// read-through cache so Get never touches the network.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	cache map[uuid.UUID]models.Entity
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache: make(map[uuid.UUID]models.Entity),
	}
}

type entityQueryRequest struct {
	Kinds    []models.EntityKind `json:"kinds"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

type entityQueryResponse struct {
	Entities       []wireEntity `json:"entities"`
	TooManyResults bool         `json:"too_many_results"`
}

type loadRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type loadResponse struct {
	Entities []wireEntity `json:"entities"`
}

type eventQueryRequest struct {
	InsertedStartUTC *time.Time       `json:"inserted_start_utc,omitempty"`
	InsertedEndUTC   *time.Time       `json:"inserted_end_utc,omitempty"`
	Types            []string         `json:"types,omitempty"`
	SourcePositions  map[string]int64 `json:"source_positions"`
	MaxResults       int              `json:"max_results"`
}

type eventQueryResponse struct {
	Events         []wireEvent                  `json:"events"`
	TooManyResults bool                         `json:"too_many_results"`
	SubQueryErrors map[string]wireSubQueryError `json:"sub_query_errors,omitempty"`
}

// wireSubQueryError is a per-source failure inside an otherwise successful
// event query. Code carries machine-readable conditions; Message is for
// operators.
type wireSubQueryError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

const subQueryCodeTooManyResults = "too_many_results"

func (w wireSubQueryError) toError() error {
	if w.Code == subQueryCodeTooManyResults {
		return ErrTooManyResults
	}
	if w.Message != "" {
		return fmt.Errorf("%s", w.Message)
	}
	return fmt.Errorf("%s", w.Code)
}

func (c *Client) Query(ctx context.Context, q EntityQuery) ([]models.Entity, error) {
	if c == nil {
		return nil, fmt.Errorf("source client not configured")
	}
	var resp entityQueryResponse
	if err := c.post(ctx, "/api/v1/entities/query", entityQueryRequest{
		Kinds:    q.Kinds,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, &resp); err != nil {
		return nil, err
	}
	if resp.TooManyResults {
		return nil, ErrTooManyResults
	}
	entities := make([]models.Entity, 0, len(resp.Entities))
	for _, w := range resp.Entities {
		e, err := w.toEntity()
		if err != nil {
			return nil, fmt.Errorf("decode entity %s: %w", w.ID, err)
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (c *Client) Get(id uuid.UUID) (models.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.cache[id]
	return e, ok
}

func (c *Client) Load(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	var resp loadResponse
	if err := c.post(ctx, "/api/v1/entities/load", loadRequest{IDs: ids}, &resp); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range resp.Entities {
		e, err := w.toEntity()
		if err != nil {
			return fmt.Errorf("decode entity %s: %w", w.ID, err)
		}
		c.cache[e.GUID()] = e
	}
	return nil
}

func (c *Client) CustomFieldNames(ctx context.Context) ([]string, error) {
	var resp struct {
		Names []string `json:"names"`
	}
	if err := c.get(ctx, "/api/v1/custom-fields", &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *Client) QueryEvents(ctx context.Context, q EventQuery) (EventPage, error) {
	if c == nil {
		return EventPage{}, fmt.Errorf("source client not configured")
	}
	req := eventQueryRequest{
		InsertedStartUTC: q.InsertedStartUTC,
		InsertedEndUTC:   q.InsertedEndUTC,
		SourcePositions:  make(map[string]int64, len(q.SourcePositions)),
		MaxResults:       q.MaxResults,
	}
	for _, t := range q.Types {
		req.Types = append(req.Types, t.String())
	}
	for id, pos := range q.SourcePositions {
		req.SourcePositions[id.String()] = pos
	}

	var resp eventQueryResponse
	if err := c.post(ctx, "/api/v1/events/query", req, &resp); err != nil {
		return EventPage{}, err
	}

	page := EventPage{}
	for _, w := range resp.Events {
		ev, err := w.toRawEvent()
		if err != nil {
			return EventPage{}, fmt.Errorf("decode event: %w", err)
		}
		page.Events = append(page.Events, ev)
	}
	for src, sub := range resp.SubQueryErrors {
		id, err := uuid.Parse(src)
		if err != nil {
			continue
		}
		if page.SubQueryErrors == nil {
			page.SubQueryErrors = make(map[uuid.UUID]error)
		}
		page.SubQueryErrors[id] = sub.toError()
	}
	if resp.TooManyResults {
		// A capped page still carries the rows that fit under the cap. The
		// caller needs them to advance its cursor past the cap.
		return page, ErrTooManyResults
	}
	return page, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	return c.do(request, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(request, out)
}

func (c *Client) do(request *http.Request, out any) error {
	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("gateway response status %d: %s", resp.StatusCode, errBody["message"])
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// wireEntity is the gateway's polymorphic entity representation.
type wireEntity struct {
	ID           uuid.UUID         `json:"id"`
	Kind         models.EntityKind `json:"kind"`
	Name         string            `json:"name"`
	FirstName    string            `json:"first_name,omitempty"`
	LastName     string            `json:"last_name,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Format       *wireFormat       `json:"format,omitempty"`
	Side         string            `json:"side,omitempty"`
	RuleIDs      []uuid.UUID       `json:"rule_ids,omitempty"`
	SiteName     string            `json:"site_name,omitempty"`
	State        string            `json:"state,omitempty"`
	Federated    bool              `json:"federated,omitempty"`
}

type wireFormat struct {
	Type      string `json:"type"`
	Facility  uint32 `json:"facility,omitempty"`
	CompanyID uint32 `json:"company_id,omitempty"`
	CardID    uint64 `json:"card_id"`
	Bits      []byte `json:"bits,omitempty"`
}

func (w wireEntity) toEntity() (models.Entity, error) {
	base := models.Base{ID: w.ID, DisplayName: w.Name}
	switch w.Kind {
	case models.KindCardholder:
		return models.Cardholder{
			Base:         base,
			FirstName:    w.FirstName,
			LastName:     w.LastName,
			CustomFields: w.CustomFields,
		}, nil
	case models.KindCredential:
		f, err := w.Format.toFormat()
		if err != nil {
			return nil, err
		}
		return models.Credential{Base: base, Format: f}, nil
	case models.KindAccessPoint:
		return models.AccessPoint{
			Base:      base,
			Side:      models.Side(w.Side),
			RuleGUIDs: w.RuleIDs,
		}, nil
	case models.KindDoor:
		return models.Door{Base: base, SiteName: w.SiteName}, nil
	case models.KindUnit:
		return models.Unit{Base: base, State: w.State, Federated: w.Federated}, nil
	case models.KindRole:
		return models.Role{Base: base, State: w.State}, nil
	case models.KindAccessRule:
		return models.AccessRule{Base: base}, nil
	default:
		return nil, fmt.Errorf("unknown entity kind %q", w.Kind)
	}
}

func (w *wireFormat) toFormat() (credential.Format, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Type {
	case "wiegand_standard":
		return credential.WiegandStandard{FacilityCode: uint8(w.Facility), CardID: uint16(w.CardID)}, nil
	case "h10302":
		return credential.WiegandH10302{CardID: w.CardID}, nil
	case "h10304":
		return credential.WiegandH10304{FacilityCode: uint16(w.Facility), CardID: uint32(w.CardID)}, nil
	case "h10306":
		return credential.WiegandH10306{FacilityCode: uint16(w.Facility), CardID: uint32(w.CardID)}, nil
	case "corporate1000":
		return credential.Corporate1000{CompanyID: w.CompanyID, CardID: uint32(w.CardID)}, nil
	case "corporate1000_48":
		return credential.Corporate1000x48{CompanyID: w.CompanyID, CardID: w.CardID}, nil
	case "csn32":
		return credential.CSN32{CardID: uint32(w.CardID)}, nil
	case "raw":
		return credential.Raw{Bits: w.Bits}, nil
	default:
		return nil, fmt.Errorf("unknown credential format %q", w.Type)
	}
}

// wireEvent is the gateway's raw-event representation.
type wireEvent struct {
	SourceGUID      uuid.UUID `json:"source_guid,omitempty"`
	AccessPointGUID uuid.UUID `json:"access_point_guid,omitempty"`
	CredentialGUID  uuid.UUID `json:"credential_guid,omitempty"`
	CardholderGUID  uuid.UUID `json:"cardholder_guid,omitempty"`
	UnitGUID        uuid.UUID `json:"unit_guid,omitempty"`
	DoorGUID        uuid.UUID `json:"door_guid,omitempty"`
	Period          string    `json:"period"`
	SourceID        uuid.UUID `json:"source_id"`
	Position        int64     `json:"position"`
	InsertedUTC     time.Time `json:"inserted_utc"`
	Timestamp       time.Time `json:"timestamp_utc"`
	Type            string    `json:"type"`
	TimeZone        string    `json:"time_zone"`
}

func (w wireEvent) toRawEvent() (models.RawEvent, error) {
	t, err := models.ParseEventType(w.Type)
	if err != nil {
		return models.RawEvent{}, err
	}
	var period models.OccurrencePeriod
	switch w.Period {
	case "", "online":
		period = models.PeriodOnline
	case "offline":
		period = models.PeriodOffline
	case "offline_alarm":
		period = models.PeriodOfflineAlarm
	default:
		return models.RawEvent{}, fmt.Errorf("unknown occurrence period %q", w.Period)
	}
	return models.RawEvent{
		SourceGUID:      w.SourceGUID,
		AccessPointGUID: w.AccessPointGUID,
		CredentialGUID:  w.CredentialGUID,
		CardholderGUID:  w.CardholderGUID,
		UnitGUID:        w.UnitGUID,
		DoorGUID:        w.DoorGUID,
		Period:          period,
		SourceID:        w.SourceID,
		Position:        w.Position,
		InsertedUTC:     w.InsertedUTC.UTC(),
		Timestamp:       w.Timestamp.UTC(),
		Type:            t,
		TimeZone:        w.TimeZone,
	}, nil
}
