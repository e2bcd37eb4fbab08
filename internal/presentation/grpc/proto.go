package grpc

// proto.go is the hand-written equivalent of generated service code for
// fanders.ledger.v1.LedgerService. Messages are the application dto types,
// carried by the JSON codec.

import (
	"context"

	grpclib "google.golang.org/grpc"

	"github.com/fanders/microfinance/internal/application/dto"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "fanders.ledger.v1.LedgerService"

// FullMethod returns the "/service/method" path used by interceptors.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Empty is the request of methods that take no arguments.
type Empty struct{}

// LedgerServiceServer is the server API for LedgerService.
type LedgerServiceServer interface {
	QuoteLoan(context.Context, *dto.QuoteLoanRequest) (*dto.QuoteResponse, error)
	GetLoanConfig(context.Context, *Empty) (*dto.LoanConfigResponse, error)
	ApplyLoan(context.Context, *dto.ApplyLoanRequest) (*dto.LoanResponse, error)
	ApproveLoan(context.Context, *dto.LoanActionRequest) (*dto.LoanResponse, error)
	DisburseLoan(context.Context, *dto.LoanActionRequest) (*dto.LoanResponse, error)
	MarkLoanDefaulted(context.Context, *dto.LoanActionRequest) (*dto.LoanResponse, error)
	GetLoan(context.Context, *dto.GetLoanRequest) (*dto.LoanSummaryResponse, error)
	PostPayment(context.Context, *dto.PostPaymentRequest) (*dto.PostPaymentResponse, error)
	ListPayments(context.Context, *dto.GetLoanRequest) (*dto.ListPaymentsResponse, error)
	GetOverdueLoans(context.Context, *dto.OverdueLoansRequest) (*dto.OverdueLoansResponse, error)

	OpenBlotter(context.Context, *dto.BlotterRequest) (*dto.BlotterResponse, error)
	RefreshBlotter(context.Context, *dto.BlotterRequest) (*dto.BlotterResponse, error)
	AddExpense(context.Context, *dto.AddExpenseRequest) (*dto.AddExpenseResponse, error)
	FinalizeBlotter(context.Context, *dto.BlotterRequest) (*dto.BlotterResponse, error)
	GetBlotterRange(context.Context, *dto.BlotterRangeRequest) (*dto.BlotterRangeResponse, error)
	GetCashPosition(context.Context, *Empty) (*dto.CashPositionResponse, error)
	RecalculateBlotters(context.Context, *dto.RecalculateBlottersRequest) (*dto.RecalculateBlottersResponse, error)

	CreateCollectionSheet(context.Context, *dto.CreateSheetRequest) (*dto.SheetResponse, error)
	AddSheetLoans(context.Context, *dto.AddSheetLoansRequest) (*dto.SheetResponse, error)
	RecordCollection(context.Context, *dto.RecordCollectionRequest) (*dto.RecordCollectionResponse, error)
	SubmitCollectionSheet(context.Context, *dto.SheetActionRequest) (*dto.SheetResponse, error)
	ApproveCollectionSheet(context.Context, *dto.SheetActionRequest) (*dto.SheetResponse, error)
	GetCollectionSheet(context.Context, *dto.GetSheetRequest) (*dto.SheetResponse, error)
	ListCollectionSheets(context.Context, *dto.ListSheetsRequest) (*dto.ListSheetsResponse, error)
}

// RegisterLedgerServiceServer registers srv with the gRPC server.
func RegisterLedgerServiceServer(s grpclib.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&ledgerServiceDesc, srv)
}

var ledgerServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpclib.MethodDesc{
		unary("QuoteLoan", LedgerServiceServer.QuoteLoan),
		unary("GetLoanConfig", LedgerServiceServer.GetLoanConfig),
		unary("ApplyLoan", LedgerServiceServer.ApplyLoan),
		unary("ApproveLoan", LedgerServiceServer.ApproveLoan),
		unary("DisburseLoan", LedgerServiceServer.DisburseLoan),
		unary("MarkLoanDefaulted", LedgerServiceServer.MarkLoanDefaulted),
		unary("GetLoan", LedgerServiceServer.GetLoan),
		unary("PostPayment", LedgerServiceServer.PostPayment),
		unary("ListPayments", LedgerServiceServer.ListPayments),
		unary("GetOverdueLoans", LedgerServiceServer.GetOverdueLoans),
		unary("OpenBlotter", LedgerServiceServer.OpenBlotter),
		unary("RefreshBlotter", LedgerServiceServer.RefreshBlotter),
		unary("AddExpense", LedgerServiceServer.AddExpense),
		unary("FinalizeBlotter", LedgerServiceServer.FinalizeBlotter),
		unary("GetBlotterRange", LedgerServiceServer.GetBlotterRange),
		unary("GetCashPosition", LedgerServiceServer.GetCashPosition),
		unary("RecalculateBlotters", LedgerServiceServer.RecalculateBlotters),
		unary("CreateCollectionSheet", LedgerServiceServer.CreateCollectionSheet),
		unary("AddSheetLoans", LedgerServiceServer.AddSheetLoans),
		unary("RecordCollection", LedgerServiceServer.RecordCollection),
		unary("SubmitCollectionSheet", LedgerServiceServer.SubmitCollectionSheet),
		unary("ApproveCollectionSheet", LedgerServiceServer.ApproveCollectionSheet),
		unary("GetCollectionSheet", LedgerServiceServer.GetCollectionSheet),
		unary("ListCollectionSheets", LedgerServiceServer.ListCollectionSheets),
	},
	Streams: []grpclib.StreamDesc{},
}

// unary builds the method descriptor generated code would spell out by hand
// for each RPC.
func unary[Req, Resp any](method string, call func(LedgerServiceServer, context.Context, *Req) (*Resp, error)) grpclib.MethodDesc {
	return grpclib.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServiceServer), ctx, in)
			}
			info := &grpclib.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
