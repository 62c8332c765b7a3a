// Package api exposes the contact use cases over gRPC on the daemon's Unix
// socket. Messages are google.protobuf.Struct values; the service descriptor
// below is maintained by hand.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "phonecontact.v1.ContactService"

// Method names.
const (
	MethodListContacts       = "ListContacts"
	MethodSearchContacts     = "SearchContacts"
	MethodGetContact         = "GetContact"
	MethodCreateContact      = "CreateContact"
	MethodUpdateContact      = "UpdateContact"
	MethodDeleteContact      = "DeleteContact"
	MethodSyncContacts       = "SyncContacts"
	MethodRefreshContact     = "RefreshContact"
	MethodUploadImage        = "UploadImage"
	MethodExportToDevice     = "ExportToDevice"
	MethodRecordSearch       = "RecordSearch"
	MethodRecentSearches     = "RecentSearches"
	MethodRemoveSearch       = "RemoveSearch"
	MethodClearSearchHistory = "ClearSearchHistory"
	MethodGetStatus          = "GetStatus"
	MethodWatchContacts      = "WatchContacts"
)

// ContactServiceServer is the server API for the contact service.
type ContactServiceServer interface {
	ListContacts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchContacts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SyncContacts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RefreshContact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UploadImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportToDevice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordSearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecentSearches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveSearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ClearSearchHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchContacts(*structpb.Struct, grpc.ServerStream) error
}

type unaryMethod func(ContactServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ContactServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ContactServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchContactsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ContactServiceServer).WatchContacts(in, stream)
}

// ServiceDesc is the grpc.ServiceDesc for the contact service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContactServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodListContacts, ContactServiceServer.ListContacts),
		unary(MethodSearchContacts, ContactServiceServer.SearchContacts),
		unary(MethodGetContact, ContactServiceServer.GetContact),
		unary(MethodCreateContact, ContactServiceServer.CreateContact),
		unary(MethodUpdateContact, ContactServiceServer.UpdateContact),
		unary(MethodDeleteContact, ContactServiceServer.DeleteContact),
		unary(MethodSyncContacts, ContactServiceServer.SyncContacts),
		unary(MethodRefreshContact, ContactServiceServer.RefreshContact),
		unary(MethodUploadImage, ContactServiceServer.UploadImage),
		unary(MethodExportToDevice, ContactServiceServer.ExportToDevice),
		unary(MethodRecordSearch, ContactServiceServer.RecordSearch),
		unary(MethodRecentSearches, ContactServiceServer.RecentSearches),
		unary(MethodRemoveSearch, ContactServiceServer.RemoveSearch),
		unary(MethodClearSearchHistory, ContactServiceServer.ClearSearchHistory),
		unary(MethodGetStatus, ContactServiceServer.GetStatus),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchContacts,
			Handler:       watchContactsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "phonecontact/v1/contacts.proto",
}

// RegisterContactServiceServer registers srv on s.
func RegisterContactServiceServer(s grpc.ServiceRegistrar, srv ContactServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the gRPC path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}
