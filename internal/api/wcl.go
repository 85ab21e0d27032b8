package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ToppleTheNun/mchammer-sub000/internal/config"
	"github.com/ToppleTheNun/mchammer-sub000/internal/constants"
	"github.com/valyala/fasthttp"
)

// ErrInvalidPayload marks a response that arrived but failed shape
// validation. Callers degrade these to empty results instead of
// failing the surrounding ingestion.
var ErrInvalidPayload = errors.New("invalid payload from log source")

// Client talks to the combat log source's GraphQL endpoint.
type Client struct {
	apiURL string
	tokens *tokenSource
	client *fasthttp.Client
}

func NewClient(cfg *config.Config) *Client {
	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     100,
		ReadTimeout:         10 * time.Second,
		WriteTimeout:        10 * time.Second,
		MaxIdleConnDuration: 1 * time.Minute,
	}

	return &Client{
		apiURL: cfg.WCLAPIURL,
		tokens: newTokenSource(cfg.WCLClientID, cfg.WCLClientSecret, cfg.WCLTokenURL, httpClient),
		client: httpClient,
	}
}

// ReportFights is a report's metadata plus its raw fight list.
type ReportFights struct {
	Code      string
	Title     string
	Region    string
	StartTime int64
	EndTime   int64
	Fights    []Fight
}

type Fight struct {
	ID          int   `json:"id"`
	StartTime   int64 `json:"startTime"`
	EndTime     int64 `json:"endTime"`
	EncounterID int   `json:"encounterID"`
	Difficulty  int   `json:"difficulty"`
}

type PlayerSpec struct {
	Spec  string `json:"spec"`
	Count int    `json:"count"`
}

// PlayerDetail is one roster entry. Fights lists the report-local ids
// of the fights the player was present in.
type PlayerDetail struct {
	ID     int          `json:"id"`
	GUID   int64        `json:"guid"`
	Name   string       `json:"name"`
	Server string       `json:"server"`
	Type   string       `json:"type"`
	Specs  []PlayerSpec `json:"specs"`
	Fights []int        `json:"fights"`
}

// PlayerDetails is the roster partitioned by role.
type PlayerDetails struct {
	Tanks   []PlayerDetail
	Healers []PlayerDetail
	DPS     []PlayerDetail
}

type Event struct {
	Timestamp     int64  `json:"timestamp"`
	Type          string `json:"type"`
	SourceID      int    `json:"sourceID"`
	TargetID      int    `json:"targetID"`
	AbilityGameID int64  `json:"abilityGameID"`
	HitType       int    `json:"hitType"`
	Amount        int64  `json:"amount"`
	Absorbed      int64  `json:"absorbed"`
	Mitigated     int64  `json:"mitigated"`
}

// EventPage is one page of damage-taken events. A nil
// NextPageTimestamp means the page is the last one.
type EventPage struct {
	Events            []Event
	NextPageTimestamp *int64
}

type RateLimitData struct {
	LimitPerHour        float64 `json:"limitPerHour"`
	PointsSpentThisHour float64 `json:"pointsSpentThisHour"`
	PointsResetIn       int     `json:"pointsResetIn"`
}

const reportFightsQuery = `query ReportFights($code: String!) {
  reportData {
    report(code: $code) {
      code
      title
      startTime
      endTime
      region { slug }
      fights(killType: Encounters) {
        id
        startTime
        endTime
        encounterID
        difficulty
      }
    }
  }
}`

const playerDetailsQuery = `query ReportPlayerDetails($code: String!, $fightIDs: [Int!]!) {
  reportData {
    report(code: $code) {
      playerDetails(fightIDs: $fightIDs)
    }
  }
}`

const damageTakenEventsQuery = `query ReportDamageTakenEvents($code: String!, $startTime: Float!, $endTime: Float!) {
  reportData {
    report(code: $code) {
      events(
        startTime: $startTime
        endTime: $endTime
        dataType: DamageTaken
        hostilityType: Friendlies
        filterExpression: "ability.type = 1"
      ) {
        data
        nextPageTimestamp
      }
    }
  }
}`

const rateLimitQuery = `query RateLimit {
  rateLimitData {
    limitPerHour
    pointsSpentThisHour
    pointsResetIn
  }
}`

// GetReportFights fetches a report's metadata and fight list. Returns
// (nil, nil) when the source has no report with the given code.
func (c *Client) GetReportFights(ctx context.Context, code string) (*ReportFights, error) {
	type payload struct {
		ReportData struct {
			Report *struct {
				Code      string `json:"code"`
				Title     string `json:"title"`
				StartTime int64  `json:"startTime"`
				EndTime   int64  `json:"endTime"`
				Region    *struct {
					Slug string `json:"slug"`
				} `json:"region"`
				Fights []Fight `json:"fights"`
			} `json:"report"`
		} `json:"reportData"`
	}

	data, err := doQuery[payload](ctx, c, reportFightsQuery, map[string]any{"code": code})
	if err != nil {
		return nil, err
	}

	report := data.ReportData.Report
	if report == nil {
		return nil, nil
	}

	result := &ReportFights{
		Code:      report.Code,
		Title:     report.Title,
		StartTime: report.StartTime,
		EndTime:   report.EndTime,
		Fights:    report.Fights,
	}
	if report.Region != nil {
		result.Region = report.Region.Slug
	}
	return result, nil
}

// GetPlayerDetails fetches the role-partitioned roster for a set of
// fights. The playerDetails field is an untyped JSON blob on the wire;
// a blob that fails shape validation yields ErrInvalidPayload.
func (c *Client) GetPlayerDetails(ctx context.Context, code string, fightIDs []int) (*PlayerDetails, error) {
	type payload struct {
		ReportData struct {
			Report *struct {
				PlayerDetails json.RawMessage `json:"playerDetails"`
			} `json:"report"`
		} `json:"reportData"`
	}

	data, err := doQuery[payload](ctx, c, playerDetailsQuery, map[string]any{
		"code":     code,
		"fightIDs": fightIDs,
	})
	if err != nil {
		return nil, err
	}

	report := data.ReportData.Report
	if report == nil || len(report.PlayerDetails) == 0 {
		return nil, fmt.Errorf("%w: missing player details for report %s", ErrInvalidPayload, code)
	}

	var blob struct {
		Data struct {
			PlayerDetails struct {
				Tanks   []PlayerDetail `json:"tanks"`
				Healers []PlayerDetail `json:"healers"`
				DPS     []PlayerDetail `json:"dps"`
			} `json:"playerDetails"`
		} `json:"data"`
	}
	if err := json.Unmarshal(report.PlayerDetails, &blob); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return &PlayerDetails{
		Tanks:   blob.Data.PlayerDetails.Tanks,
		Healers: blob.Data.PlayerDetails.Healers,
		DPS:     blob.Data.PlayerDetails.DPS,
	}, nil
}

// GetDamageTakenPage fetches one page of physical damage-taken events
// in [startTime, endTime], both report-relative milliseconds.
func (c *Client) GetDamageTakenPage(ctx context.Context, code string, startTime, endTime int64) (*EventPage, error) {
	type payload struct {
		ReportData struct {
			Report *struct {
				Events *struct {
					Data              json.RawMessage `json:"data"`
					NextPageTimestamp *int64          `json:"nextPageTimestamp"`
				} `json:"events"`
			} `json:"report"`
		} `json:"reportData"`
	}

	data, err := doQuery[payload](ctx, c, damageTakenEventsQuery, map[string]any{
		"code":      code,
		"startTime": startTime,
		"endTime":   endTime,
	})
	if err != nil {
		return nil, err
	}

	report := data.ReportData.Report
	if report == nil || report.Events == nil {
		return nil, fmt.Errorf("%w: missing events for report %s", ErrInvalidPayload, code)
	}

	var events []Event
	if len(report.Events.Data) > 0 {
		if err := json.Unmarshal(report.Events.Data, &events); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	return &EventPage{
		Events:            events,
		NextPageTimestamp: report.Events.NextPageTimestamp,
	}, nil
}

// GetRateLimitData reports how many API points the client has spent
// this hour. Surfaced on the health endpoint for operators.
func (c *Client) GetRateLimitData(ctx context.Context) (*RateLimitData, error) {
	type payload struct {
		RateLimitData *RateLimitData `json:"rateLimitData"`
	}

	data, err := doQuery[payload](ctx, c, rateLimitQuery, nil)
	if err != nil {
		return nil, err
	}
	if data.RateLimitData == nil {
		return nil, fmt.Errorf("%w: missing rate limit data", ErrInvalidPayload)
	}
	return data.RateLimitData, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func doQuery[T any](ctx context.Context, c *Client, query string, variables map[string]any) (*T, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.apiURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.ExternalAPITimeout)
	}
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("query failed: %s", envelope.Errors[0].Message)
	}

	var result T
	if err := json.Unmarshal(envelope.Data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &result, nil
}
