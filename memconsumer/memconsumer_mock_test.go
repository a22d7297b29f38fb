package memconsumer_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rowbatch/colexec/memconsumer"
)

// MockMemoryManager is a hand-written gomock-style mock for
// memconsumer.MemoryManager, in the shape mockgen would generate, used
// to assert MemoryConsumer delegates try_grow/shrink/drop exactly as
// spec.md §4.3 describes without depending on a real budget-tracking
// implementation.
type MockMemoryManager struct {
	ctrl     *gomock.Controller
	recorder *MockMemoryManagerMockRecorder
}

type MockMemoryManagerMockRecorder struct{ mock *MockMemoryManager }

func NewMockMemoryManager(ctrl *gomock.Controller) *MockMemoryManager {
	m := &MockMemoryManager{ctrl: ctrl}
	m.recorder = &MockMemoryManagerMockRecorder{m}
	return m
}

func (m *MockMemoryManager) EXPECT() *MockMemoryManagerMockRecorder { return m.recorder }

func (m *MockMemoryManager) RegisterRequester(id uuid.UUID) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "RegisterRequester", id)
}

func (mr *MockMemoryManagerMockRecorder) RegisterRequester(id interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RegisterRequester", reflect.TypeOf((*MockMemoryManager)(nil).RegisterRequester), id)
}

func (m *MockMemoryManager) TryGrow(ctx context.Context, id uuid.UUID, n uint64) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "TryGrow", ctx, id, n)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockMemoryManagerMockRecorder) TryGrow(ctx, id, n interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "TryGrow", reflect.TypeOf((*MockMemoryManager)(nil).TryGrow), ctx, id, n)
}

func (m *MockMemoryManager) Shrink(id uuid.UUID, n uint64) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Shrink", id, n)
}

func (mr *MockMemoryManagerMockRecorder) Shrink(id, n interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Shrink", reflect.TypeOf((*MockMemoryManager)(nil).Shrink), id, n)
}

func (m *MockMemoryManager) DropConsumer(id uuid.UUID, used uint64) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "DropConsumer", id, used)
}

func (mr *MockMemoryManagerMockRecorder) DropConsumer(id, used interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DropConsumer", reflect.TypeOf((*MockMemoryManager)(nil).DropConsumer), id, used)
}

func TestMemoryConsumerDelegatesToManager(t *testing.T) {
	ctrl := gomock.NewController(t)
	mgr := NewMockMemoryManager(ctrl)

	mgr.EXPECT().RegisterRequester(gomock.Any())
	mgr.EXPECT().TryGrow(gomock.Any(), gomock.Any(), uint64(50)).Return(nil)
	mgr.EXPECT().Shrink(gomock.Any(), uint64(50))
	mgr.EXPECT().DropConsumer(gomock.Any(), uint64(0))

	c := memconsumer.New(mgr, "mocked", nil)
	require.NoError(t, c.TryGrow(context.Background(), 50))
	c.Shrink(50)
	c.Close()
}
