package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"gridvend/internal/store"
	"gridvend/internal/validate"
)

// Limits bounds what a single import is allowed to cost.
type Limits struct {
	MaxFileSize int64 // bytes; 0 disables the check
	MaxRows     int   // data rows per batch; 0 disables the check
	PreviewRows int   // outcomes included in the report
}

// DefaultPreviewRows caps the report preview when no limit is configured.
const DefaultPreviewRows = 25

// Service is the application core: imports, registration, and order
// operations. The web layer is a thin shell around it.
type Service struct {
	db     store.Runner
	log    *slog.Logger
	limits Limits
}

func NewService(db store.Runner, log *slog.Logger, limits Limits) *Service {
	if log == nil {
		log = slog.Default()
	}
	if limits.PreviewRows <= 0 {
		limits.PreviewRows = DefaultPreviewRows
	}
	return &Service{db: db, log: log, limits: limits}
}

// ImportCustomers ingests a customer sheet: each row resolves a city and a
// person. The mini-grid and cluster stamp created cities and people.
func (s *Service) ImportCustomers(ctx context.Context, fileName string, data []byte, miniGridID, clusterID int64) (*Report, error) {
	if miniGridID <= 0 || clusterID <= 0 {
		return nil, errors.New("mini_grid_id and cluster_id are required")
	}
	sheet, err := s.parse(fileName, data)
	if err != nil {
		return nil, err
	}
	return s.runLogged(ctx, sheet, BatchParams{
		Kind:       KindCustomers,
		FileName:   fileName,
		MiniGridID: miniGridID,
		ClusterID:  clusterID,
	})
}

// ImportMeters ingests a vending-records sheet: each row runs the full
// meter-type, person, meter, device, order cascade.
func (s *Service) ImportMeters(ctx context.Context, fileName string, data []byte) (*Report, error) {
	sheet, err := s.parse(fileName, data)
	if err != nil {
		return nil, err
	}
	return s.runLogged(ctx, sheet, BatchParams{Kind: KindMeters, FileName: fileName})
}

func (s *Service) parse(fileName string, data []byte) (*Sheet, error) {
	if max := s.limits.MaxFileSize; max > 0 && int64(len(data)) > max {
		return nil, fmt.Errorf("file exceeds %dMB limit", max/(1024*1024))
	}
	return ParseTabular(fileName, data)
}

func (s *Service) runLogged(ctx context.Context, sheet *Sheet, p BatchParams) (*Report, error) {
	start := time.Now()
	report, err := s.runBatch(ctx, sheet, p)
	if err != nil {
		s.log.ErrorContext(ctx, "import aborted", "kind", p.Kind, "file", p.FileName, "error", err)
		return nil, err
	}
	s.log.InfoContext(ctx, "import finished",
		"kind", p.Kind,
		"file", p.FileName,
		"batch_id", report.BatchID,
		"total_rows", report.TotalRows,
		"failed_rows", report.Failed,
		"duration", time.Since(start))
	return report, nil
}

// CreateOrder builds an order from an API payload. Electricity orders are
// completed vends and must carry the vend result (token, power code, purchase
// time); their meter may arrive as a serial number instead of an id. The
// builder enforces the remaining type invariants.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (store.Order, error) {
	if in.Type == store.OrderTypeElectricity {
		purchasedAt := ""
		if !in.PurchasedAt.IsZero() {
			purchasedAt = in.PurchasedAt.Format(time.RFC3339)
		}
		if err := validate.Check("order.create_electricity", map[string]string{
			"token":        in.Token,
			"power_code":   in.PowerCode,
			"purchased_at": purchasedAt,
		}); err != nil {
			return store.Order{}, err
		}
	}

	var order store.Order
	err := s.db.RunInTx(ctx, func(q store.Querier) error {
		if err := resolveOrderMeter(ctx, q, &in); err != nil {
			return err
		}
		var err error
		order, err = BuildOrder(ctx, q, in)
		return err
	})
	return order, err
}

// resolveOrderMeter fills MeterID from a supplied serial number on
// electricity orders, the way vendor callers identify meters.
func resolveOrderMeter(ctx context.Context, q store.Querier, in *OrderInput) error {
	if in.Type != store.OrderTypeElectricity || in.MeterID != 0 || in.SerialNumber == "" {
		return nil
	}
	m, err := q.GetMeterBySerial(ctx, in.SerialNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("meter %q not found", in.SerialNumber)
		}
		return fmt.Errorf("look up meter %q: %w", in.SerialNumber, err)
	}
	in.MeterID = m.ID
	return nil
}

// UpdateOrder rewrites an existing order inside one transaction.
func (s *Service) UpdateOrder(ctx context.Context, id int64, in OrderInput) (store.Order, error) {
	var order store.Order
	err := s.db.RunInTx(ctx, func(q store.Querier) error {
		var err error
		order, err = UpdateOrder(ctx, q, id, in)
		return err
	})
	return order, err
}

// OrderAnalytics aggregates order counts and revenue per type, optionally
// bounded by purchase window.
func (s *Service) OrderAnalytics(ctx context.Context, from, to time.Time) ([]store.OrderTypeStat, error) {
	return s.db.OrderAnalytics(ctx, store.OrderAnalyticsParams{
		From: store.ToPgTimestamptz(from),
		To:   store.ToPgTimestamptz(to),
	})
}

func (s *Service) GetOrder(ctx context.Context, id int64) (store.Order, error) {
	return s.db.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, arg store.ListOrdersParams) ([]store.Order, error) {
	return s.db.ListOrders(ctx, arg)
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	return s.db.DeleteOrder(ctx, id)
}

// AssignMeterInput carries an external vendor's meter details back onto a
// pending meter order.
type AssignMeterInput struct {
	ExternalCustomerID string  `json:"external_customer_id"`
	SerialNumber       string  `json:"serial_number"`
	MaxCurrent         float64 `json:"max_current"`
	Phase              int32   `json:"phase"`
	Phone              string  `json:"phone"`
	GeoPoints          string  `json:"geo_points"`
}

// AssignExternalMeter completes a pending meter order: it registers the
// vendor-supplied meter under the order's customer and attaches it to the
// order. The whole flow is one transaction.
func (s *Service) AssignExternalMeter(ctx context.Context, orderID int64, in AssignMeterInput) (store.Order, error) {
	if err := validate.Check("order.assign_meter", map[string]string{
		"external_customer_id": in.ExternalCustomerID,
		"serial_number":        in.SerialNumber,
		"max_current":          strconv.FormatFloat(in.MaxCurrent, 'f', -1, 64),
		"phase":                strconv.Itoa(int(in.Phase)),
		"phone":                in.Phone,
	}); err != nil {
		return store.Order{}, err
	}
	if in.GeoPoints == "" {
		in.GeoPoints = "0,0"
	}

	var updated store.Order
	err := s.db.RunInTx(ctx, func(q store.Querier) error {
		order, err := q.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("order %d not found", orderID)
			}
			return err
		}
		if order.Type != store.OrderTypeMeter {
			return fmt.Errorf("order %s is not a meter order", order.OrderID)
		}
		if order.MeterID.Valid {
			return fmt.Errorf("order %s already has a meter assigned", order.OrderID)
		}

		mt, err := getOrCreateMeterType(ctx, q, in.MaxCurrent, in.Phase)
		if err != nil {
			return err
		}

		_, meter, err := RegisterCustomer(ctx, q, RegistrationInput{
			Name:               order.FirstName.String,
			Surname:            order.LastName.String,
			Phone:              in.Phone,
			ExternalCustomerID: in.ExternalCustomerID,
			GeoPoints:          in.GeoPoints,
			MiniGridID:         order.MiniGridID.Int64,
			SerialNumber:       in.SerialNumber,
			MeterTypeID:        mt.ID,
			ManufacturerID:     defaultManufacturerID,
			ConnectionTypeID:   defaultConnectionTypeID,
			ConnectionGroupID:  defaultConnectionGroupID,
			TariffID:           defaultTariffID,
		})
		if err != nil {
			return err
		}

		updated, err = q.AssignMeterToOrder(ctx, store.AssignMeterToOrderParams{
			ID:                 order.ID,
			MeterID:            meter.ID,
			ExternalCustomerID: store.ToPgText(in.ExternalCustomerID),
		})
		return err
	})
	return updated, err
}

// PendingVendingRows lists meter orders awaiting assignment, optionally
// bounded by purchase window, for the vending-records export.
func (s *Service) PendingVendingRows(ctx context.Context, from, to time.Time) ([]store.PendingVendingRow, error) {
	return s.db.ListPendingMeterOrders(ctx, store.ListPendingMeterOrdersParams{
		From: store.ToPgTimestamptz(from),
		To:   store.ToPgTimestamptz(to),
	})
}

func getOrCreateMeterType(ctx context.Context, q store.Querier, maxCurrent float64, phase int32) (store.MeterType, error) {
	mt, err := q.GetMeterType(ctx, store.GetMeterTypeParams{MaxCurrent: maxCurrent, Phase: phase})
	if err == nil {
		return mt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return store.MeterType{}, fmt.Errorf("look up meter type: %w", err)
	}
	return q.CreateMeterType(ctx, store.CreateMeterTypeParams{
		MaxCurrent: maxCurrent,
		Phase:      phase,
		Online:     true,
	})
}
