package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/autogenerations/printsync/internal/etsy"
	fulfillmentdomain "github.com/autogenerations/printsync/internal/fulfillment/domain"
	fulfillmentstore "github.com/autogenerations/printsync/internal/fulfillment/store"
	obsmetrics "github.com/autogenerations/printsync/internal/observability/metrics"
	orderdomain "github.com/autogenerations/printsync/internal/order/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TrackJob refreshes receipts that are submitted but not yet settled. For
// every linked partner order it pulls the current state, re-runs the upsert
// discipline, posts the shipment confirmation back to the marketplace when
// the order goes terminal, and sends one aggregated alert per receipt
// covering newly erroring status fields and genuinely new issues.
func (r *Reconciler) TrackJob(ctx context.Context) error {
	log := r.log.Named("track")
	recMetrics := obsmetrics.Reconcile()

	receipts, err := r.orders.ListInFlight(ctx)
	if err != nil {
		return err
	}

	var jobErr error
	for _, receipt := range receipts {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		if err := guard(func() error { return r.trackReceipt(ctx, receipt) }); err != nil {
			jobErr = errors.Join(jobErr, err)
			recMetrics.IncReceiptFailed("track")
			log.Error("receipt tracking failed",
				zap.Int64("receipt_id", receipt.ReceiptID),
				zap.Error(err),
			)
			r.alertError(ctx, "track", receipt.ReceiptID, err)
			continue
		}
		recMetrics.IncReceiptProcessed("track")
	}
	return jobErr
}

func (r *Reconciler) trackReceipt(ctx context.Context, receipt *orderdomain.Receipt) error {
	partnerOrders, err := r.fulfillment.ListByReceipt(ctx, receipt.ID)
	if err != nil {
		return err
	}
	if len(partnerOrders) == 0 {
		return nil
	}

	var diffs []fulfillmentstore.StatusDiff
	allTerminal := true
	allComplete := true

	for _, order := range partnerOrders {
		orderRec, err := r.prodigi.GetOrder(ctx, order.PartnerOrderID)
		if err != nil {
			return err
		}

		var diff fulfillmentstore.StatusDiff
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			orders := r.orders.WithTrx(tx)
			fulfillment := r.fulfillment.WithTrx(tx)

			address, err := orders.EnsureAddress(ctx, recipientAddress(orderRec.Recipient))
			if err != nil {
				return err
			}
			diff, err = fulfillment.UpdateOrderGraph(ctx, order, address.ID, orderRec, false)
			return err
		})
		if err != nil {
			return err
		}
		diffs = append(diffs, diff)

		if !diff.Stage.Terminal() {
			allTerminal = false
		}
		if diff.Stage != fulfillmentdomain.StageComplete {
			allComplete = false
		}

		if diff.Stage == fulfillmentdomain.StageComplete {
			if err := r.postShipmentOnce(ctx, receipt, order.ID); err != nil {
				return err
			}
		}
	}

	if allTerminal {
		if err := r.settleReceipt(ctx, receipt, allComplete); err != nil {
			return err
		}
	}

	r.sendAggregatedAlert(ctx, receipt.ReceiptID, diffs)
	return nil
}

// postShipmentOnce posts the shipment confirmation to the marketplace,
// gated strictly on the receipt having zero recorded shipments. The gate
// and the call are not atomic together; the locally recorded shipment is
// what keeps retries from double-posting.
func (r *Reconciler) postShipmentOnce(ctx context.Context, receipt *orderdomain.Receipt, orderRef snowflake.ID) error {
	count, err := r.orders.CountShipments(ctx, receipt.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	shipment, err := r.fulfillment.LatestShipment(ctx, orderRef)
	if err != nil {
		return err
	}
	if shipment == nil {
		r.log.Named("track").Warn("order complete but no shipment recorded",
			zap.Int64("receipt_id", receipt.ReceiptID),
		)
		return nil
	}

	carrier := etsy.MapCarrier(shipment.Carrier)
	_, err = r.etsy.CreateReceiptShipment(ctx, receipt.ReceiptID, carrier, shipment.TrackingNumber, shippedNote, true)
	if err != nil {
		return err
	}
	obsmetrics.Reconcile().IncShipmentPosted()

	if _, err := r.orders.RecordPostedShipment(ctx, receipt.ID, string(carrier), shipment.TrackingNumber, shippedNote); err != nil {
		return err
	}

	subject := fmt.Sprintf("[printsync] receipt %d shipped", receipt.ReceiptID)
	body := fmt.Sprintf("Receipt %d shipped via %s, tracking %s.\n", receipt.ReceiptID, carrier, shipment.TrackingNumber)
	if err := r.notifier.Send(ctx, subject, body); err != nil {
		r.log.Named("track").Warn("shipped notification failed", zap.Error(err))
	} else {
		obsmetrics.Reconcile().IncAlertSent()
	}
	return nil
}

// settleReceipt closes out a receipt whose partner orders have all gone
// terminal, marking its line items along the way.
func (r *Reconciler) settleReceipt(ctx context.Context, receipt *orderdomain.Receipt, complete bool) error {
	status := orderdomain.ReconcileStatusComplete
	txStatus := orderdomain.FulfillmentStatusCompleted
	if !complete {
		status = orderdomain.ReconcileStatusCanceled
		txStatus = orderdomain.FulfillmentStatusCanceled
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := r.orders.WithTrx(tx)

		transactions, err := orders.ListTransactions(ctx, receipt.ID)
		if err != nil {
			return err
		}
		for _, txn := range transactions {
			if txn.FulfillmentStatus == txStatus {
				continue
			}
			txn.FulfillmentStatus = txStatus
			if err := orders.SaveTransaction(ctx, txn); err != nil {
				return err
			}
		}

		receipt.ReconcileStatus = status
		return orders.SaveReceipt(ctx, receipt)
	})
}

// sendAggregatedAlert composes one alert per receipt covering every status
// field that newly errored and every structurally new issue this poll.
func (r *Reconciler) sendAggregatedAlert(ctx context.Context, receiptID int64, diffs []fulfillmentstore.StatusDiff) {
	var b strings.Builder
	for _, diff := range diffs {
		for _, field := range diff.ErrorEdges {
			fmt.Fprintf(&b, "status field %s entered error\n", field)
		}
		for _, issue := range diff.NewIssues {
			fmt.Fprintf(&b, "new issue: object=%s code=%s %s\n", issue.ObjectID, issue.ErrorCode, issue.Description)
		}
	}
	if b.Len() == 0 {
		return
	}

	subject := fmt.Sprintf("[printsync] receipt %d fulfillment problems", receiptID)
	if err := r.notifier.Send(ctx, subject, b.String()); err != nil {
		r.log.Named("track").Warn("alert delivery failed", zap.Error(err))
		return
	}
	obsmetrics.Reconcile().IncAlertSent()
}
