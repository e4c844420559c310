package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"roomly/pkg/model"
	"strconv"
)

// ReservationClient is a thin SDK over the reservation HTTP API.
type ReservationClient struct {
	httpClient *HttpClient
}

func NewReservationClient(baseURL string) *ReservationClient {
	return &ReservationClient{
		httpClient: NewHttpClient(baseURL),
	}
}

// HTTP returns the underlying client, e.g. to set default headers.
func (c *ReservationClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *ReservationClient) Create(body any) (*Response, error) {
	return c.httpClient.POST("/reservation", body)
}

func (c *ReservationClient) CreateWithIdempotencyKey(body any, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders("/reservation", body, map[string]string{"Idempotency-Key": key})
}

func (c *ReservationClient) CreateRaw(rawBody []byte) (*Response, error) {
	return c.httpClient.POSTRaw("/reservation", rawBody)
}

func (c *ReservationClient) GetByID(id int64) (*Response, error) {
	return c.httpClient.GET(reservationPath(id))
}

// List fetches one page. Nil filters are omitted.
func (c *ReservationClient) List(roomID, userID *int64, pageSize, pageNumber int) (*Response, error) {
	q := url.Values{}
	if roomID != nil {
		q.Set("room_id", strconv.FormatInt(*roomID, 10))
	}
	if userID != nil {
		q.Set("user_id", strconv.FormatInt(*userID, 10))
	}
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("page_number", strconv.Itoa(pageNumber))

	return c.httpClient.GET("/reservation?" + q.Encode())
}

func (c *ReservationClient) Update(id int64, body any) (*Response, error) {
	return c.httpClient.PUT(reservationPath(id), body)
}

func (c *ReservationClient) UpdateRaw(id int64, rawBody []byte) (*Response, error) {
	return c.httpClient.PUTRaw(reservationPath(id), rawBody)
}

func (c *ReservationClient) Cancel(id int64) (*Response, error) {
	return c.httpClient.DELETE(reservationPath(id) + "/cancel")
}

func (c *ReservationClient) Confirm(id int64) (*Response, error) {
	return c.httpClient.POST(reservationPath(id)+"/confirm", nil)
}

func (c *ReservationClient) CheckAvailability(roomID int64, startDate, endDate string) (*Response, error) {
	return c.httpClient.POST("/availability/check", map[string]any{
		"room_id":    roomID,
		"start_date": startDate,
		"end_date":   endDate,
	})
}

func (c *ReservationClient) DecodeReservation(resp *Response) (*model.ReservationResponse, error) {
	var wrapper struct {
		Data *model.ReservationResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil {
		return nil, fmt.Errorf("could not decode reservation:\n%s\n%w", resp.ToString(), err)
	}
	if wrapper.Data == nil {
		return nil, fmt.Errorf("response has no data:\n%s", resp.ToString())
	}
	return wrapper.Data, nil
}

type ReservationPage struct {
	Data       []*model.ReservationResponse `json:"data"`
	TotalCount int64                        `json:"total_count"`
	PageSize   int                          `json:"page_size"`
	PageNumber int                          `json:"page_number"`
}

func (c *ReservationClient) DecodeReservationPage(resp *Response) (*ReservationPage, error) {
	var page ReservationPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return nil, fmt.Errorf("could not decode reservation page:\n%s\n%w", resp.ToString(), err)
	}
	return &page, nil
}

func (c *ReservationClient) DecodeAvailability(resp *Response) (*model.AvailabilityResponse, error) {
	var wrapper struct {
		Data *model.AvailabilityResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &wrapper); err != nil || wrapper.Data == nil {
		return nil, fmt.Errorf("could not decode availability:\n%s\n%v", resp.ToString(), err)
	}
	return wrapper.Data, nil
}

// ErrorBody is the error envelope written by the API.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func DecodeError(resp *Response) (*ErrorBody, error) {
	var body ErrorBody
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, fmt.Errorf("could not decode error:\n%s\n%w", resp.ToString(), err)
	}
	return &body, nil
}

func reservationPath(id int64) string {
	return "/reservation/" + strconv.FormatInt(id, 10)
}
