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

type delhivery struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logg       *logger.Logger
}

func newDelhivery(cfg config.ShippingConfig, logg *logger.Logger) *delhivery {
	return &delhivery{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.DelhiveryBaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.DelhiveryAPIKey),
		logg:       logg,
	}
}

func (d *delhivery) Code() enums.CarrierCode { return enums.CarrierDelhivery }

func (d *delhivery) live() bool { return d.apiKey != "" }

func (d *delhivery) TrackingURL(awb string) string {
	return fmt.Sprintf("https://www.delhivery.com/track/package/%s", url.PathEscape(awb))
}

func (d *delhivery) GenerateLabel(ctx context.Context, input LabelInput) LabelResult {
	if !d.live() {
		awb := fmt.Sprintf("DELHIVERY-%s", input.OrderNumber)
		return LabelResult{
			Carrier:        enums.CarrierDelhivery,
			Success:        true,
			TrackingNumber: awb,
			TrackingURL:    d.TrackingURL(awb),
			LabelURL:       fmt.Sprintf("https://mock.delhivery.test/labels/%s.pdf", awb),
			Mock:           true,
		}
	}

	payload := map[string]any{
		"shipments": []map[string]any{{
			"order":        input.OrderNumber,
			"name":         input.Address.FullName,
			"add":          input.Address.Line1,
			"city":         input.Address.City,
			"state":        input.Address.Region,
			"pin":          input.Address.PostalCode,
			"country":      input.Address.Country,
			"phone":        input.Address.Phone,
			"weight":       input.WeightGrams,
			"cod_amount":   float64(input.CODAmountCents) / 100,
			"payment_mode": paymentMode(input.CODAmountCents),
		}},
	}
	var response struct {
		Packages []struct {
			Waybill string `json:"waybill"`
			Status  string `json:"status"`
		} `json:"packages"`
	}
	if err := d.call(ctx, http.MethodPost, "/api/cmu/create.json", payload, &response); err != nil {
		return LabelResult{Carrier: enums.CarrierDelhivery, Error: err.Error()}
	}
	if len(response.Packages) == 0 {
		return LabelResult{Carrier: enums.CarrierDelhivery, Error: "delhivery returned no packages"}
	}

	awb := response.Packages[0].Waybill
	return LabelResult{
		Carrier:        enums.CarrierDelhivery,
		Success:        true,
		TrackingNumber: awb,
		TrackingURL:    d.TrackingURL(awb),
		LabelURL:       fmt.Sprintf("%s/api/p/packing_slip?wbns=%s", d.baseURL, url.QueryEscape(awb)),
	}
}

func (d *delhivery) SchedulePickup(ctx context.Context, input PickupInput) PickupResult {
	date := input.PickupDate.Format("2006-01-02")
	if !d.live() {
		return PickupResult{
			Carrier:         enums.CarrierDelhivery,
			PickupScheduled: true,
			PickupID:        fmt.Sprintf("DELHIVERY-PICKUP-%s", input.AWB),
			PickupDate:      date,
			Mock:            true,
		}
	}

	payload := map[string]any{
		"pickup_date":            date,
		"pickup_location":        input.Address.City,
		"expected_package_count": 1,
	}
	var response struct {
		PickupID int64 `json:"pickup_id"`
	}
	if err := d.call(ctx, http.MethodPost, "/fm/request/new/", payload, &response); err != nil {
		return PickupResult{Carrier: enums.CarrierDelhivery, Error: err.Error()}
	}
	return PickupResult{
		Carrier:         enums.CarrierDelhivery,
		PickupScheduled: true,
		PickupID:        fmt.Sprintf("%d", response.PickupID),
		PickupDate:      date,
	}
}

func (d *delhivery) Track(ctx context.Context, awb string) TrackResult {
	if !d.live() {
		return TrackResult{
			Carrier:     enums.CarrierDelhivery,
			AWB:         awb,
			Status:      "In Transit",
			TrackingURL: d.TrackingURL(awb),
			Mock:        true,
		}
	}

	var response struct {
		ShipmentData []struct {
			Shipment struct {
				Status struct {
					Status string `json:"Status"`
				} `json:"Status"`
			} `json:"Shipment"`
		} `json:"ShipmentData"`
	}
	path := "/api/v1/packages/json/?waybill=" + url.QueryEscape(awb)
	if err := d.call(ctx, http.MethodGet, path, nil, &response); err != nil {
		return TrackResult{Carrier: enums.CarrierDelhivery, AWB: awb, Error: err.Error()}
	}
	status := "Unknown"
	if len(response.ShipmentData) > 0 {
		status = response.ShipmentData[0].Shipment.Status.Status
	}
	return TrackResult{
		Carrier:     enums.CarrierDelhivery,
		AWB:         awb,
		Status:      status,
		TrackingURL: d.TrackingURL(awb),
	}
}

func (d *delhivery) call(ctx context.Context, method, path string, payload, out any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delhivery returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func paymentMode(codAmountCents int64) string {
	if codAmountCents > 0 {
		return "COD"
	}
	return "Prepaid"
}
