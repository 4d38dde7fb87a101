package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parkwatch-service/internal/detector"
	"parkwatch-service/internal/security"
)

type imageInput struct {
	data   []byte
	format detector.ImageFormat
}

type securityRequest struct {
	ImageBase64  string                   `json:"imageBase64"`
	ImageURL     string                   `json:"imageUrl"`
	VehicleInfo  *security.VehicleContext `json:"vehicleInfo"`
	ZoneName     string                   `json:"zoneName"`
	VehicleColor string                   `json:"vehicleColor"`
	VehicleType  string                   `json:"vehicleType"`
	PlateNumber  string                   `json:"plateNumber"`
}

func (h *Handler) assessThreat(c *gin.Context) {
	img, vehicle, ok := h.parseSecurityRequest(c)
	if !ok {
		return
	}
	if vehicle.ZoneName == "" {
		c.JSON(http.StatusBadRequest, errorResponse("zoneName is required in vehicleInfo"))
		return
	}
	if img == nil {
		c.JSON(http.StatusBadRequest, errorResponse("No image provided. Send image, imageUrl, or imageBase64."))
		return
	}

	result := h.threats.Assess(c.Request.Context(), img.data, img.format, vehicle)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) assessFire(c *gin.Context) {
	img, _, ok := h.parseSecurityRequest(c)
	if !ok {
		return
	}
	if img == nil {
		c.JSON(http.StatusBadRequest, errorResponse("No image provided. Send image, imageUrl, or imageBase64."))
		return
	}

	result := h.fires.Assess(c.Request.Context(), img.data, img.format)
	c.JSON(http.StatusOK, result)
}

func (h *Handler) synthesizeSpeech(c *gin.Context) {
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Text == "" {
		c.JSON(http.StatusBadRequest, errorResponse("Text is required as a string in the request body"))
		return
	}

	audio, err := h.tts.Synthesize(c.Request.Context(), body.Text)
	if err != nil {
		h.log.Error().Err(err).Msg("speech synthesis failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "TTS synthesis failed",
			"audio": security.AudioPayload{Base64: "", MimeType: "audio/wav"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"audio":   audio,
	})
}

// parseSecurityRequest extracts the image and vehicle context from either a
// multipart form (file upload plus flat fields) or a JSON body. A false
// return means the response has already been written.
func (h *Handler) parseSecurityRequest(c *gin.Context) (*imageInput, security.VehicleContext, bool) {
	var vehicle security.VehicleContext

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if raw := c.PostForm("vehicleInfo"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &vehicle); err != nil {
				c.JSON(http.StatusBadRequest, errorResponse("Invalid vehicleInfo JSON"))
				return nil, vehicle, false
			}
		} else {
			vehicle = security.VehicleContext{
				ZoneName:     c.PostForm("zoneName"),
				VehicleColor: c.PostForm("vehicleColor"),
				VehicleType:  c.PostForm("vehicleType"),
				PlateNumber:  c.PostForm("plateNumber"),
			}
		}
		img, err := h.imageFromForm(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("failed to read uploaded image"))
			return nil, vehicle, false
		}
		return img, vehicle, true
	}

	var body securityRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("vehicleInfo is required with zoneName"))
		return nil, vehicle, false
	}

	if body.VehicleInfo != nil {
		vehicle = *body.VehicleInfo
	} else {
		vehicle = security.VehicleContext{
			ZoneName:     body.ZoneName,
			VehicleColor: body.VehicleColor,
			VehicleType:  body.VehicleType,
			PlateNumber:  body.PlateNumber,
		}
	}

	switch {
	case body.ImageURL != "":
		return &imageInput{data: []byte(body.ImageURL), format: detector.FormatURL}, vehicle, true
	case body.ImageBase64 != "":
		return &imageInput{data: []byte(body.ImageBase64), format: detector.FormatBase64}, vehicle, true
	}
	return nil, vehicle, true
}

func (h *Handler) imageFromForm(c *gin.Context) (*imageInput, error) {
	if file, err := c.FormFile("image"); err == nil && file != nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return &imageInput{data: data, format: detector.FormatBytes}, nil
	}
	if url := c.PostForm("imageUrl"); url != "" {
		return &imageInput{data: []byte(url), format: detector.FormatURL}, nil
	}
	if b64 := c.PostForm("imageBase64"); b64 != "" {
		return &imageInput{data: []byte(b64), format: detector.FormatBase64}, nil
	}
	return nil, nil
}
