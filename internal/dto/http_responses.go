package dto

import (
	"github.com/gin-gonic/gin"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	LinkNotFound = "LINK_NOT_FOUND"
)

type CreateLinkRequest struct {
	DestinationURL   string `json:"destination_url" validate:"required,url"`
	CollaborationID  string `json:"collaboration_id" validate:"required"`
	TrackImpressions *bool  `json:"track_impressions,omitempty"`
	TrackClicks      *bool  `json:"track_clicks,omitempty"`
	TrackRevenue     *bool  `json:"track_revenue,omitempty"`
}

type LinkResponse struct {
	Hash             string `json:"hash"`
	TrackingURL      string `json:"tracking_url"`
	DestinationURL   string `json:"destination_url"`
	TrackImpressions bool   `json:"track_impressions"`
	TrackClicks      bool   `json:"track_clicks"`
	TrackRevenue     bool   `json:"track_revenue"`
	CollaborationID  string `json:"collaboration_id"`
	CreatedAt        string `json:"created_at"`
}

type Response struct {
	Status string      `json:"status"`
	Error  *Error      `json:"error,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *gin.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *gin.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func FieldBadFormatError(c *gin.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *gin.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func LinkNotFoundError(c *gin.Context) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: LinkNotFound,
			Desc: "Tracked link not found",
		},
	})
}

func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
