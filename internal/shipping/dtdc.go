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

type dtdc struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	logg        *logger.Logger
}

func newDTDC(cfg config.ShippingConfig, logg *logger.Logger) *dtdc {
	return &dtdc{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     strings.TrimRight(cfg.DTDCBaseURL, "/"),
		accessToken: strings.TrimSpace(cfg.DTDCAccessToken),
		logg:        logg,
	}
}

func (d *dtdc) Code() enums.CarrierCode { return enums.CarrierDTDC }

func (d *dtdc) live() bool { return d.accessToken != "" }

func (d *dtdc) TrackingURL(awb string) string {
	return fmt.Sprintf("https://www.dtdc.in/tracking?awb=%s", url.QueryEscape(awb))
}

func (d *dtdc) GenerateLabel(ctx context.Context, input LabelInput) LabelResult {
	if !d.live() {
		awb := fmt.Sprintf("DTDC-%s", input.OrderNumber)
		return LabelResult{
			Carrier:        enums.CarrierDTDC,
			Success:        true,
			TrackingNumber: awb,
			TrackingURL:    d.TrackingURL(awb),
			LabelURL:       fmt.Sprintf("https://mock.dtdc.test/labels/%s.pdf", awb),
			Mock:           true,
		}
	}

	payload := map[string]any{
		"consignments": []map[string]any{{
			"customer_reference_number": input.OrderNumber,
			"destination_details": map[string]any{
				"name":           input.Address.FullName,
				"address_line_1": input.Address.Line1,
				"city":           input.Address.City,
				"state":          input.Address.Region,
				"pincode":        input.Address.PostalCode,
				"phone":          input.Address.Phone,
			},
			"weight":       float64(input.WeightGrams) / 1000,
			"cod_amount":   float64(input.CODAmountCents) / 100,
			"service_type": "B2C",
		}},
	}
	var response struct {
		Data []struct {
			Success   bool   `json:"success"`
			Reference string `json:"reference_number"`
		} `json:"data"`
	}
	if err := d.call(ctx, "/dtdc-api/api/customer/integration/consignment/softdata", payload, &response); err != nil {
		return LabelResult{Carrier: enums.CarrierDTDC, Error: err.Error()}
	}
	if len(response.Data) == 0 || !response.Data[0].Success {
		return LabelResult{Carrier: enums.CarrierDTDC, Error: "dtdc rejected consignment"}
	}

	awb := response.Data[0].Reference
	return LabelResult{
		Carrier:        enums.CarrierDTDC,
		Success:        true,
		TrackingNumber: awb,
		TrackingURL:    d.TrackingURL(awb),
		LabelURL:       fmt.Sprintf("%s/dtdc-api/api/customer/integration/consignment/label/%s", d.baseURL, url.PathEscape(awb)),
	}
}

func (d *dtdc) SchedulePickup(ctx context.Context, input PickupInput) PickupResult {
	date := input.PickupDate.Format("2006-01-02")
	if !d.live() {
		return PickupResult{
			Carrier:         enums.CarrierDTDC,
			PickupScheduled: true,
			PickupID:        fmt.Sprintf("DTDC-PICKUP-%s", input.AWB),
			PickupDate:      date,
			Mock:            true,
		}
	}

	payload := map[string]any{
		"pickup_date":    date,
		"pickup_pincode": input.Address.PostalCode,
		"consignments":   []string{input.AWB},
	}
	var response struct {
		Success  bool   `json:"success"`
		PickupID string `json:"pickup_id"`
	}
	if err := d.call(ctx, "/dtdc-api/api/customer/integration/pickup/request", payload, &response); err != nil {
		return PickupResult{Carrier: enums.CarrierDTDC, Error: err.Error()}
	}
	if !response.Success {
		return PickupResult{Carrier: enums.CarrierDTDC, Error: "dtdc rejected pickup request"}
	}
	return PickupResult{
		Carrier:         enums.CarrierDTDC,
		PickupScheduled: true,
		PickupID:        response.PickupID,
		PickupDate:      date,
	}
}

func (d *dtdc) Track(ctx context.Context, awb string) TrackResult {
	if !d.live() {
		return TrackResult{
			Carrier:     enums.CarrierDTDC,
			AWB:         awb,
			Status:      "In Transit",
			TrackingURL: d.TrackingURL(awb),
			Mock:        true,
		}
	}

	payload := map[string]any{
		"trkType":   "cnno",
		"strcnno":   awb,
		"addtnlDtl": "N",
	}
	var response struct {
		TrackHeader struct {
			Status string `json:"strStatus"`
		} `json:"trackHeader"`
	}
	if err := d.call(ctx, "/dtdc-api/rest/JSONCnTrk/getTrackDetails", payload, &response); err != nil {
		return TrackResult{Carrier: enums.CarrierDTDC, AWB: awb, Error: err.Error()}
	}
	status := response.TrackHeader.Status
	if status == "" {
		status = "Unknown"
	}
	return TrackResult{
		Carrier:     enums.CarrierDTDC,
		AWB:         awb,
		Status:      status,
		TrackingURL: d.TrackingURL(awb),
	}
}

func (d *dtdc) call(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", d.accessToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dtdc returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
