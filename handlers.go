package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/distro_backend/config"
	"bitbucket.org/mmdatafocus/distro_backend/models"
	"bitbucket.org/mmdatafocus/distro_backend/models/reports"
	"bitbucket.org/mmdatafocus/distro_backend/utils"
	"bitbucket.org/mmdatafocus/distro_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// respondError maps engine errors onto HTTP statuses: missing records to
// 404, concurrency conflicts to 409, business refusals (credit denied,
// insufficient stock, bad input) to 422 with the refusal details, anything
// else to 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, utils.ErrorConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case utils.IsBusinessRejection(err):
		var creditErr *utils.CreditDeniedError
		if errors.As(err, &creditErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":          creditErr.Error(),
				"reason":         creditErr.Reason,
				"distributor_id": creditErr.DistributorId,
				"requested":      creditErr.Requested.StringFixed(2),
				"available":      creditErr.Available.StringFixed(2),
				"credit_limit":   creditErr.Limit.StringFixed(2),
				"credit_used":    creditErr.Used.StringFixed(2),
			})
			return
		}
		var stockErr *utils.InsufficientStockError
		if errors.As(err, &stockErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":      stockErr.Error(),
				"product_id": stockErr.ProductId,
				"requested":  stockErr.Requested.String(),
				"available":  stockErr.Available.String(),
				"shortfall":  stockErr.Shortfall.String(),
			})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// envRateConverter converts between product and settlement currencies
// using rates from the CURRENCY_RATES env var, a JSON object of ISO code
// to rate-into-settlement-currency, e.g. {"USD":"4400","THB":"120"}.
// Unknown pairs return nil and the pricing layer rejects the line.
type envRateConverter struct {
	rates map[string]decimal.Decimal
}

func newEnvRateConverter(logger *logrus.Logger) *envRateConverter {
	conv := &envRateConverter{rates: map[string]decimal.Decimal{}}
	raw := strings.TrimSpace(os.Getenv("CURRENCY_RATES"))
	if raw == "" {
		return conv
	}
	var parsed map[string]string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		logger.Warn("invalid CURRENCY_RATES, currency conversion disabled: " + err.Error())
		return conv
	}
	for code, rate := range parsed {
		d, err := decimal.NewFromString(rate)
		if err != nil || !d.IsPositive() {
			logger.Warn("invalid CURRENCY_RATES entry for " + code)
			continue
		}
		conv.rates[strings.ToUpper(code)] = d
	}
	return conv
}

func (c *envRateConverter) Convert(from string, to string, amount decimal.Decimal) *decimal.Decimal {
	if strings.EqualFold(from, to) {
		return &amount
	}
	rate, ok := c.rates[strings.ToUpper(from)]
	if !ok {
		return nil
	}
	converted := amount.Mul(rate).Round(2)
	return &converted
}

// --- orders ---

func placeOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSalesOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		order, err := workflow.PlaceOrder(c.Request.Context(), config.GetDB(), config.GetLogger(), converter, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		order, err := models.GetSalesOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func confirmOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		order, err := workflow.ConfirmOrder(c.Request.Context(), config.GetDB(), config.GetLogger(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func deliverOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		order, err := workflow.DeliverOrder(c.Request.Context(), config.GetDB(), config.GetLogger(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func cancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)
		order, err := workflow.CancelOrder(c.Request.Context(), config.GetDB(), config.GetLogger(), id, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// --- checkout ---

func checkoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.CheckoutInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		invoice, err := workflow.Checkout(c.Request.Context(), config.GetDB(), config.GetLogger(), converter, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	}
}

// --- quotations ---

func createQuotationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQuotation
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		quotation, err := workflow.CreateQuotation(c.Request.Context(), config.GetDB(), config.GetLogger(), converter, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, quotation)
	}
}

func getQuotationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		quotation, err := models.GetQuotation(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, quotation)
	}
}

func transitionQuotationHandler(transition func(ctx context.Context, id int) (*models.Quotation, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		quotation, err := transition(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, quotation)
	}
}

func convertQuotationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		invoice, err := workflow.ConvertQuotationToInvoice(c.Request.Context(), config.GetDB(), config.GetLogger(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

// --- invoices ---

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		invoice, err := models.GetSalesInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

func recordPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input workflow.PaymentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		invoice, err := workflow.RecordInvoicePayment(c.Request.Context(), config.GetDB(), config.GetLogger(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	}
}

// --- distributors & credit ---

func createDistributorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDistributor
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		distributor, err := models.CreateDistributor(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, distributor)
	}
}

func updateDistributorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewDistributor
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		distributor, err := models.UpdateDistributor(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, distributor)
	}
}

func getDistributorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		distributor, err := models.GetDistributor(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"distributor":      distributor,
			"available_credit": distributor.AvailableCredit().StringFixed(2),
			"utilization_pct":  distributor.UtilizationPct().StringFixed(2),
		})
	}
}

func listDistributorsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		distributors, err := models.GetDistributors(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, distributors)
	}
}

func distributorStatusHandler(apply func(ctx context.Context, id int) (*models.Distributor, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		distributor, err := apply(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, distributor)
	}
}

func setCreditLimitHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req struct {
			CreditLimit decimal.Decimal `json:"credit_limit" binding:"required"`
			Reason      string          `json:"reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		ctx := c.Request.Context()
		var entry *models.CreditLedgerEntry
		err := workflow.RunOrderTransaction(ctx, config.GetDB(), config.GetLogger(), func(tx *gorm.DB) error {
			var txErr error
			entry, txErr = workflow.SetLimit(tx, id, req.CreditLimit, req.Reason, utils.ActorFromContext(ctx))
			return txErr
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func reviewCreditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var req struct {
			Notes string `json:"notes"`
		}
		_ = c.ShouldBindJSON(&req)

		ctx := c.Request.Context()
		var entry *models.CreditLedgerEntry
		err := workflow.RunOrderTransaction(ctx, config.GetDB(), config.GetLogger(), func(tx *gorm.DB) error {
			var txErr error
			entry, txErr = workflow.ReviewCredit(tx, id, req.Notes, utils.ActorFromContext(ctx))
			return txErr
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	}
}

func evaluateCreditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		amount, err := decimal.NewFromString(c.Query("amount"))
		if err != nil || !amount.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount query parameter must be a positive number"})
			return
		}
		decision, err := workflow.EvaluateCharge(config.GetDB().WithContext(c.Request.Context()), id, amount)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, decision)
	}
}

func creditLedgerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		limit := 100
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := models.GetCreditLedger(c.Request.Context(), id, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func creditScanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		alerts, err := workflow.ScanUtilizationAlerts(c.Request.Context(), config.GetDB(), config.GetLogger())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
	}
}

// --- stock ---

func stockLevelsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, err := strconv.Atoi(c.Param("productId"))
		if err != nil || productId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
			return
		}
		ctx := c.Request.Context()
		items, err := models.GetStockItems(ctx, productId)
		if err != nil {
			respondError(c, err)
			return
		}
		total, err := models.TotalAvailable(config.GetDB().WithContext(ctx), productId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total_available": total})
	}
}

func receiveStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ProductId   int             `json:"product_id" binding:"required"`
			WarehouseId int             `json:"warehouse_id" binding:"required"`
			Qty         decimal.Decimal `json:"qty" binding:"required"`
			UnitCost    decimal.Decimal `json:"unit_cost"`
			Reference   string          `json:"reference"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		ctx := c.Request.Context()
		var movement *models.StockMovement
		err := workflow.RunOrderTransaction(ctx, config.GetDB(), config.GetLogger(), func(tx *gorm.DB) error {
			var txErr error
			movement, txErr = workflow.Receive(tx, req.ProductId, req.WarehouseId, req.Qty, req.UnitCost, req.Reference, utils.ActorFromContext(ctx))
			return txErr
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, movement)
	}
}

func adjustStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			StockItemId int             `json:"stock_item_id" binding:"required"`
			Delta       decimal.Decimal `json:"delta" binding:"required"`
			Reason      string          `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}

		ctx := c.Request.Context()
		var movement *models.StockMovement
		err := workflow.RunOrderTransaction(ctx, config.GetDB(), config.GetLogger(), func(tx *gorm.DB) error {
			var txErr error
			movement, txErr = workflow.Adjust(tx, req.StockItemId, req.Delta, req.Reason, utils.ActorFromContext(ctx))
			return txErr
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, movement)
	}
}

func importStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		warehouseId, err := strconv.Atoi(c.PostForm("warehouse_id"))
		if err != nil || warehouseId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "warehouse_id form field is required"})
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file form field is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open uploaded file"})
			return
		}
		defer file.Close()

		summary, err := workflow.ImportStockReceipts(c.Request.Context(), config.GetDB(), config.GetLogger(), warehouseId, file)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// --- catalog & settings ---

func createProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func updateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func getProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func createWarehouseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewWarehouse
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		warehouse, err := models.CreateWarehouse(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, warehouse)
	}
}

func listWarehousesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		warehouses, err := models.GetWarehouses(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, warehouses)
	}
}

func getSettingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		value, found, err := models.GetSetting(c.Request.Context(), key)
		if err != nil {
			respondError(c, err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "setting not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
	}
}

func putSettingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		var req struct {
			Value string `json:"value" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
			return
		}
		setting, err := models.SetSetting(c.Request.Context(), key, req.Value)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, setting)
	}
}

// --- reports ---

func creditUtilizationReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := reports.GetCreditUtilizationReport(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if c.Query("format") == "xlsx" {
			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			c.Header("Content-Disposition", "attachment; filename=credit-utilization.xlsx")
			if err := reports.WriteCreditUtilizationXlsx(c.Writer, rows); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func stockSummaryReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := reports.GetStockSummaryReport(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if c.Query("format") == "xlsx" {
			c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			c.Header("Content-Disposition", "attachment; filename=stock-summary.xlsx")
			if err := reports.WriteStockSummaryXlsx(c.Writer, rows); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

// --- ops ---

type outboxReplayRequest struct {
	RecordId int `json:"record_id"`
}

// outboxReplayHandler requeues a DEAD or FAILED notification for immediate
// redelivery.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record_id is required"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		now := time.Now().UTC()
		if err := db.WithContext(c.Request.Context()).
			Model(&models.NotificationRecord{}).
			Where("id = ?", req.RecordId).
			Updates(map[string]interface{}{
				"publish_status":  models.OutboxPublishStatusFailed,
				"next_attempt_at": &now,
				"locked_at":       nil,
				"locked_by":       "",
				"last_error":      "",
			}).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}
