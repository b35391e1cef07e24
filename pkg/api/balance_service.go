package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// BalanceServiceName is the fully-qualified name of the BalanceService service.
const BalanceServiceName = "splitledger.v1.BalanceService"

// Procedure paths, in the form "/service/method".
const (
	BalanceServiceRecordExpenseProcedure    = "/splitledger.v1.BalanceService/RecordExpense"
	BalanceServiceUpdateExpenseProcedure    = "/splitledger.v1.BalanceService/UpdateExpense"
	BalanceServiceDeleteExpenseProcedure    = "/splitledger.v1.BalanceService/DeleteExpense"
	BalanceServiceResolveExpenseProcedure   = "/splitledger.v1.BalanceService/ResolveExpense"
	BalanceServiceRecordSettlementProcedure = "/splitledger.v1.BalanceService/RecordSettlement"
	BalanceServiceGetGroupBalancesProcedure = "/splitledger.v1.BalanceService/GetGroupBalances"
	BalanceServiceSimplifyDebtsProcedure    = "/splitledger.v1.BalanceService/SimplifyDebts"
	BalanceServicePutExchangeRateProcedure  = "/splitledger.v1.BalanceService/PutExchangeRate"
)

// BalanceServiceHandler is implemented by the server.
type BalanceServiceHandler interface {
	RecordExpense(context.Context, *connect.Request[RecordExpenseRequest]) (*connect.Response[RecordExpenseResponse], error)
	UpdateExpense(context.Context, *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error)
	DeleteExpense(context.Context, *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error)
	ResolveExpense(context.Context, *connect.Request[ResolveExpenseRequest]) (*connect.Response[ResolveExpenseResponse], error)
	RecordSettlement(context.Context, *connect.Request[RecordSettlementRequest]) (*connect.Response[RecordSettlementResponse], error)
	GetGroupBalances(context.Context, *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error)
	SimplifyDebts(context.Context, *connect.Request[SimplifyDebtsRequest]) (*connect.Response[SimplifyDebtsResponse], error)
	PutExchangeRate(context.Context, *connect.Request[PutExchangeRateRequest]) (*connect.Response[PutExchangeRateResponse], error)
}

// NewBalanceServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself. Messages are exchanged as JSON.
func NewBalanceServiceHandler(svc BalanceServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	handlers := map[string]http.Handler{
		BalanceServiceRecordExpenseProcedure:    connect.NewUnaryHandler(BalanceServiceRecordExpenseProcedure, svc.RecordExpense, opts...),
		BalanceServiceUpdateExpenseProcedure:    connect.NewUnaryHandler(BalanceServiceUpdateExpenseProcedure, svc.UpdateExpense, opts...),
		BalanceServiceDeleteExpenseProcedure:    connect.NewUnaryHandler(BalanceServiceDeleteExpenseProcedure, svc.DeleteExpense, opts...),
		BalanceServiceResolveExpenseProcedure:   connect.NewUnaryHandler(BalanceServiceResolveExpenseProcedure, svc.ResolveExpense, opts...),
		BalanceServiceRecordSettlementProcedure: connect.NewUnaryHandler(BalanceServiceRecordSettlementProcedure, svc.RecordSettlement, opts...),
		BalanceServiceGetGroupBalancesProcedure: connect.NewUnaryHandler(BalanceServiceGetGroupBalancesProcedure, svc.GetGroupBalances, opts...),
		BalanceServiceSimplifyDebtsProcedure:    connect.NewUnaryHandler(BalanceServiceSimplifyDebtsProcedure, svc.SimplifyDebts, opts...),
		BalanceServicePutExchangeRateProcedure:  connect.NewUnaryHandler(BalanceServicePutExchangeRateProcedure, svc.PutExchangeRate, opts...),
	}

	return "/" + BalanceServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// BalanceServiceClient is a client for the splitledger.v1.BalanceService service.
type BalanceServiceClient struct {
	recordExpense    *connect.Client[RecordExpenseRequest, RecordExpenseResponse]
	updateExpense    *connect.Client[UpdateExpenseRequest, UpdateExpenseResponse]
	deleteExpense    *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	resolveExpense   *connect.Client[ResolveExpenseRequest, ResolveExpenseResponse]
	recordSettlement *connect.Client[RecordSettlementRequest, RecordSettlementResponse]
	getGroupBalances *connect.Client[GetGroupBalancesRequest, GetGroupBalancesResponse]
	simplifyDebts    *connect.Client[SimplifyDebtsRequest, SimplifyDebtsResponse]
	putExchangeRate  *connect.Client[PutExchangeRateRequest, PutExchangeRateResponse]
}

// NewBalanceServiceClient constructs a client for the BalanceService.
// baseURL is the server root, e.g. http://localhost:8080.
func NewBalanceServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BalanceServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &BalanceServiceClient{
		recordExpense:    connect.NewClient[RecordExpenseRequest, RecordExpenseResponse](httpClient, baseURL+BalanceServiceRecordExpenseProcedure, opts...),
		updateExpense:    connect.NewClient[UpdateExpenseRequest, UpdateExpenseResponse](httpClient, baseURL+BalanceServiceUpdateExpenseProcedure, opts...),
		deleteExpense:    connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+BalanceServiceDeleteExpenseProcedure, opts...),
		resolveExpense:   connect.NewClient[ResolveExpenseRequest, ResolveExpenseResponse](httpClient, baseURL+BalanceServiceResolveExpenseProcedure, opts...),
		recordSettlement: connect.NewClient[RecordSettlementRequest, RecordSettlementResponse](httpClient, baseURL+BalanceServiceRecordSettlementProcedure, opts...),
		getGroupBalances: connect.NewClient[GetGroupBalancesRequest, GetGroupBalancesResponse](httpClient, baseURL+BalanceServiceGetGroupBalancesProcedure, opts...),
		simplifyDebts:    connect.NewClient[SimplifyDebtsRequest, SimplifyDebtsResponse](httpClient, baseURL+BalanceServiceSimplifyDebtsProcedure, opts...),
		putExchangeRate:  connect.NewClient[PutExchangeRateRequest, PutExchangeRateResponse](httpClient, baseURL+BalanceServicePutExchangeRateProcedure, opts...),
	}
}

// RecordExpense calls splitledger.v1.BalanceService.RecordExpense.
func (c *BalanceServiceClient) RecordExpense(ctx context.Context, req *connect.Request[RecordExpenseRequest]) (*connect.Response[RecordExpenseResponse], error) {
	return c.recordExpense.CallUnary(ctx, req)
}

// UpdateExpense calls splitledger.v1.BalanceService.UpdateExpense.
func (c *BalanceServiceClient) UpdateExpense(ctx context.Context, req *connect.Request[UpdateExpenseRequest]) (*connect.Response[UpdateExpenseResponse], error) {
	return c.updateExpense.CallUnary(ctx, req)
}

// DeleteExpense calls splitledger.v1.BalanceService.DeleteExpense.
func (c *BalanceServiceClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

// ResolveExpense calls splitledger.v1.BalanceService.ResolveExpense.
func (c *BalanceServiceClient) ResolveExpense(ctx context.Context, req *connect.Request[ResolveExpenseRequest]) (*connect.Response[ResolveExpenseResponse], error) {
	return c.resolveExpense.CallUnary(ctx, req)
}

// RecordSettlement calls splitledger.v1.BalanceService.RecordSettlement.
func (c *BalanceServiceClient) RecordSettlement(ctx context.Context, req *connect.Request[RecordSettlementRequest]) (*connect.Response[RecordSettlementResponse], error) {
	return c.recordSettlement.CallUnary(ctx, req)
}

// GetGroupBalances calls splitledger.v1.BalanceService.GetGroupBalances.
func (c *BalanceServiceClient) GetGroupBalances(ctx context.Context, req *connect.Request[GetGroupBalancesRequest]) (*connect.Response[GetGroupBalancesResponse], error) {
	return c.getGroupBalances.CallUnary(ctx, req)
}

// SimplifyDebts calls splitledger.v1.BalanceService.SimplifyDebts.
func (c *BalanceServiceClient) SimplifyDebts(ctx context.Context, req *connect.Request[SimplifyDebtsRequest]) (*connect.Response[SimplifyDebtsResponse], error) {
	return c.simplifyDebts.CallUnary(ctx, req)
}

// PutExchangeRate calls splitledger.v1.BalanceService.PutExchangeRate.
func (c *BalanceServiceClient) PutExchangeRate(ctx context.Context, req *connect.Request[PutExchangeRateRequest]) (*connect.Response[PutExchangeRateResponse], error) {
	return c.putExchangeRate.CallUnary(ctx, req)
}
