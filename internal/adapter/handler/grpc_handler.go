package handler

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/wallet/internal/core/domain"
	"github.com/rl1809/wallet/internal/core/service"
)

// The wallet gRPC API exchanges google.protobuf.Struct messages, which keeps
// the service free of generated stubs. Amounts and balances travel as decimal
// strings.
const WalletServiceName = "wallet.v1.WalletService"

type WalletServiceServer interface {
	CreateWallet(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyOperation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListWallets(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterWalletServiceServer(s grpc.ServiceRegistrar, srv WalletServiceServer) {
	s.RegisterService(&walletServiceDesc, srv)
}

var walletServiceDesc = grpc.ServiceDesc{
	ServiceName: WalletServiceName,
	HandlerType: (*WalletServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateWallet", Handler: unaryHandler("CreateWallet", WalletServiceServer.CreateWallet)},
		{MethodName: "ApplyOperation", Handler: unaryHandler("ApplyOperation", WalletServiceServer.ApplyOperation)},
		{MethodName: "GetBalance", Handler: unaryHandler("GetBalance", WalletServiceServer.GetBalance)},
		{MethodName: "ListWallets", Handler: unaryHandler("ListWallets", WalletServiceServer.ListWallets)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "wallet/v1/wallet.proto",
}

func unaryHandler(
	method string,
	call func(WalletServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(WalletServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + WalletServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(WalletServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	walletService *service.WalletService
}

func NewGRPCHandler(walletService *service.WalletService) *GRPCHandler {
	return &GRPCHandler{walletService: walletService}
}

func (h *GRPCHandler) CreateWallet(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	acc, err := h.walletService.CreateWallet(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	return walletStruct(acc)
}

func (h *GRPCHandler) ApplyOperation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	id, err := uuid.Parse(fields["wallet_id"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "wallet_id: must be a UUID")
	}
	kind, err := domain.ParseOperationKind(fields["operation_type"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "operation_type: "+err.Error())
	}
	amount, err := decimal.NewFromString(fields["amount"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "amount: must be a decimal string")
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, status.Error(codes.InvalidArgument, "amount: "+err.Error())
	}

	acc, err := h.walletService.ApplyOperation(ctx, domain.Operation{
		AccountID: id,
		Kind:      kind,
		Amount:    amount,
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return walletStruct(acc)
}

func (h *GRPCHandler) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuid.Parse(req.GetFields()["wallet_id"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "wallet_id: must be a UUID")
	}

	acc, err := h.walletService.GetBalance(ctx, id)
	if err != nil {
		return nil, grpcError(err)
	}
	return walletStruct(acc)
}

func (h *GRPCHandler) ListWallets(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	accounts, err := h.walletService.ListWallets(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	wallets := make([]any, 0, len(accounts))
	for i := range accounts {
		wallets = append(wallets, walletFields(&accounts[i]))
	}

	resp, err := structpb.NewStruct(map[string]any{"wallets": wallets})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func walletFields(acc *domain.Account) map[string]any {
	return map[string]any{
		"id":      acc.ID.String(),
		"balance": acc.Balance.StringFixed(domain.Scale),
	}
}

func walletStruct(acc *domain.Account) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(walletFields(acc))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrInvalidWalletID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrWalletNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrBalanceLimitExceeded):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
