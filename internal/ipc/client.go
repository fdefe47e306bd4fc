package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// WorkflowAdd creates a stopped workflow.
func (c *Client) WorkflowAdd(req WorkflowAddRequest) (*WorkflowResponse, error) {
	return call[WorkflowResponse](c, "WorkflowAdd", req)
}

// WorkflowList returns every workflow.
func (c *Client) WorkflowList() (*WorkflowListResponse, error) {
	return call[WorkflowListResponse](c, "WorkflowList", WorkflowListRequest{})
}

// WorkflowShow returns one workflow.
func (c *Client) WorkflowShow(id int64) (*WorkflowResponse, error) {
	return call[WorkflowResponse](c, "WorkflowShow", WorkflowRequest{ID: id})
}

// WorkflowStart launches the loop for a workflow.
func (c *Client) WorkflowStart(id int64) (*WorkflowActionResponse, error) {
	return call[WorkflowActionResponse](c, "WorkflowStart", WorkflowRequest{ID: id})
}

// WorkflowStop stops the loop for a workflow. The call blocks up to the
// daemon's stop grace period.
func (c *Client) WorkflowStop(id int64) (*WorkflowActionResponse, error) {
	return call[WorkflowActionResponse](c, "WorkflowStop", WorkflowRequest{ID: id})
}

// WorkflowRemove deletes a stopped workflow.
func (c *Client) WorkflowRemove(id int64) (*WorkflowActionResponse, error) {
	return call[WorkflowActionResponse](c, "WorkflowRemove", WorkflowRequest{ID: id})
}

// UserAdd creates a workflow owner.
func (c *Client) UserAdd(req UserAddRequest) (*UserAddResponse, error) {
	return call[UserAddResponse](c, "UserAdd", req)
}

// QueueList returns queue items optionally filtered by workflow and statuses.
func (c *Client) QueueList(workflowID int64, statuses []string) (*QueueListResponse, error) {
	return call[QueueListResponse](c, "QueueList", QueueListRequest{WorkflowID: workflowID, Statuses: statuses})
}

// QueueDescribe returns details for a single queue item.
func (c *Client) QueueDescribe(id int64) (*QueueDescribeResponse, error) {
	return call[QueueDescribeResponse](c, "QueueDescribe", QueueDescribeRequest{ID: id})
}

// QueueStats returns item counts per status.
func (c *Client) QueueStats(workflowID int64) (*QueueStatsResponse, error) {
	return call[QueueStatsResponse](c, "QueueStats", QueueStatsRequest{WorkflowID: workflowID})
}

// QueueHealth returns queue diagnostics.
func (c *Client) QueueHealth(workflowID int64) (*QueueHealthResponse, error) {
	return call[QueueHealthResponse](c, "QueueHealth", QueueHealthRequest{WorkflowID: workflowID})
}

// QueueReset returns items stuck in processing to pending.
func (c *Client) QueueReset(workflowID int64) (*QueueResetResponse, error) {
	return call[QueueResetResponse](c, "QueueReset", QueueResetRequest{WorkflowID: workflowID})
}

// QueueRetry retries failed items.
func (c *Client) QueueRetry(workflowID int64, ids []int64) (*QueueRetryResponse, error) {
	return call[QueueRetryResponse](c, "QueueRetry", QueueRetryRequest{WorkflowID: workflowID, IDs: ids})
}

// QueueClear removes queue items.
func (c *Client) QueueClear(workflowID int64, statuses []string) (*QueueClearResponse, error) {
	return call[QueueClearResponse](c, "QueueClear", QueueClearRequest{WorkflowID: workflowID, Statuses: statuses})
}

// Logs returns workflow log entries after a cursor.
func (c *Client) Logs(req LogsRequest) (*LogsResponse, error) {
	return call[LogsResponse](c, "Logs", req)
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
