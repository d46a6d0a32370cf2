package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mfigueroa/ordercore-backend/pkg/config"
	"github.com/mfigueroa/ordercore-backend/pkg/enums"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
)

type bluedart struct {
	httpClient *http.Client
	baseURL    string
	licenseKey string
	loginID    string
	logg       *logger.Logger
}

func newBluedart(cfg config.ShippingConfig, logg *logger.Logger) *bluedart {
	return &bluedart{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BluedartBaseURL, "/"),
		licenseKey: strings.TrimSpace(cfg.BluedartLicense),
		loginID:    strings.TrimSpace(cfg.BluedartLoginID),
		logg:       logg,
	}
}

func (b *bluedart) Code() enums.CarrierCode { return enums.CarrierBluedart }

// Bluedart needs both the license key and the login id to go live.
func (b *bluedart) live() bool { return b.licenseKey != "" && b.loginID != "" }

func (b *bluedart) TrackingURL(awb string) string {
	return fmt.Sprintf("https://www.bluedart.com/tracking?trackingNumber=%s", url.QueryEscape(awb))
}

func (b *bluedart) GenerateLabel(ctx context.Context, input LabelInput) LabelResult {
	if !b.live() {
		awb := fmt.Sprintf("BLUEDART-%s", input.OrderNumber)
		return LabelResult{
			Carrier:        enums.CarrierBluedart,
			Success:        true,
			TrackingNumber: awb,
			TrackingURL:    b.TrackingURL(awb),
			LabelURL:       fmt.Sprintf("https://mock.bluedart.test/labels/%s.pdf", awb),
			Mock:           true,
		}
	}

	payload := map[string]any{
		"Request": map[string]any{
			"Consignee": map[string]any{
				"ConsigneeName":     input.Address.FullName,
				"ConsigneeAddress1": input.Address.Line1,
				"ConsigneeAddress2": input.Address.Line2,
				"ConsigneePincode":  input.Address.PostalCode,
				"ConsigneeMobile":   input.Address.Phone,
			},
			"Services": map[string]any{
				"ActualWeight":      float64(input.WeightGrams) / 1000,
				"CollectableAmount": float64(input.CODAmountCents) / 100,
				"ProductCode":       productCode(input.CODAmountCents),
				"CreditReferenceNo": input.OrderNumber,
			},
		},
		"Profile": b.profile(),
	}
	var response struct {
		GenerateWayBillResult struct {
			AWBNo           string `json:"AWBNo"`
			IsError         bool   `json:"IsError"`
			AWBPrintContent string `json:"AWBPrintContent"`
		} `json:"GenerateWayBillResult"`
	}
	if err := b.call(ctx, "/in/transportation/waybill/v1/GenerateWayBill", payload, &response); err != nil {
		return LabelResult{Carrier: enums.CarrierBluedart, Error: err.Error()}
	}
	if response.GenerateWayBillResult.IsError || response.GenerateWayBillResult.AWBNo == "" {
		return LabelResult{Carrier: enums.CarrierBluedart, Error: "bluedart rejected waybill request"}
	}

	awb := response.GenerateWayBillResult.AWBNo
	return LabelResult{
		Carrier:        enums.CarrierBluedart,
		Success:        true,
		TrackingNumber: awb,
		TrackingURL:    b.TrackingURL(awb),
		LabelURL:       fmt.Sprintf("%s/in/transportation/waybill/v1/PrintWayBill?awb=%s", b.baseURL, url.QueryEscape(awb)),
	}
}

func (b *bluedart) SchedulePickup(ctx context.Context, input PickupInput) PickupResult {
	date := input.PickupDate.Format("2006-01-02")
	if !b.live() {
		return PickupResult{
			Carrier:         enums.CarrierBluedart,
			PickupScheduled: true,
			PickupID:        fmt.Sprintf("BLUEDART-PICKUP-%s", input.AWB),
			PickupDate:      date,
			Mock:            true,
		}
	}

	payload := map[string]any{
		"Request": map[string]any{
			"PickupDate":    date,
			"PickupAddress": input.Address.Line1,
			"PickupPincode": input.Address.PostalCode,
			"AWBNo":         []string{input.AWB},
		},
		"Profile": b.profile(),
	}
	var response struct {
		RegisterPickupResult struct {
			TokenNumber string `json:"TokenNumber"`
			IsError     bool   `json:"IsError"`
		} `json:"RegisterPickupResult"`
	}
	if err := b.call(ctx, "/in/transportation/pickup/v1/RegisterPickup", payload, &response); err != nil {
		return PickupResult{Carrier: enums.CarrierBluedart, Error: err.Error()}
	}
	if response.RegisterPickupResult.IsError {
		return PickupResult{Carrier: enums.CarrierBluedart, Error: "bluedart rejected pickup request"}
	}
	return PickupResult{
		Carrier:         enums.CarrierBluedart,
		PickupScheduled: true,
		PickupID:        response.RegisterPickupResult.TokenNumber,
		PickupDate:      date,
	}
}

func (b *bluedart) Track(ctx context.Context, awb string) TrackResult {
	if !b.live() {
		return TrackResult{
			Carrier:     enums.CarrierBluedart,
			AWB:         awb,
			Status:      "In Transit",
			TrackingURL: b.TrackingURL(awb),
			Mock:        true,
		}
	}

	payload := map[string]any{
		"Request": map[string]any{"AWBNo": awb},
		"Profile": b.profile(),
	}
	var response struct {
		ShipmentData struct {
			Status string `json:"Status"`
		} `json:"ShipmentData"`
	}
	if err := b.call(ctx, "/in/transportation/tracking/v1/ShipmentTracking", payload, &response); err != nil {
		return TrackResult{Carrier: enums.CarrierBluedart, AWB: awb, Error: err.Error()}
	}
	status := response.ShipmentData.Status
	if status == "" {
		status = "Unknown"
	}
	return TrackResult{
		Carrier:     enums.CarrierBluedart,
		AWB:         awb,
		Status:      status,
		TrackingURL: b.TrackingURL(awb),
	}
}

func (b *bluedart) profile() map[string]any {
	return map[string]any{
		"LicenceKey": b.licenseKey,
		"LoginID":    b.loginID,
	}
}

func (b *bluedart) call(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("JWTToken", b.licenseKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bluedart returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func productCode(codAmountCents int64) string {
	if codAmountCents > 0 {
		return "C"
	}
	return "A"
}
