package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

var (
	ErrRedPacketNotFound      = errors.New("red packet not found")
	ErrRedPacketAlreadyExists = errors.New("red packet already exists")
)

const redPacketColumns = `
	id, mch_billno, send_name, re_openid, total_amount, total_num,
	wishing, act_name, remark, amt_type, client_ip, scene_id, risk_info, consume_mch_id,
	send_json, send_listid, query_json,
	status, version, created_at, updated_at`

type RedPacketRepository struct {
	db DBTX
}

func NewRedPacketRepository(db DBTX) *RedPacketRepository {
	return &RedPacketRepository{db: db}
}

func (r *RedPacketRepository) Create(ctx context.Context, packet *entity.RedPacket) error {
	snapshots, err := serializeSnapshots(packet.SendResult, packet.QueryResult)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO wxpay_red_packets (
			mch_billno, send_name, re_openid, total_amount, total_num,
			wishing, act_name, remark, amt_type, client_ip, scene_id, risk_info, consume_mch_id,
			send_json, send_listid, query_json,
			status, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		packet.MchBillno,
		packet.SendName,
		packet.ReOpenID,
		packet.TotalAmount,
		packet.TotalNum,
		packet.Wishing,
		packet.ActName,
		packet.Remark,
		nullableStringValue(packet.AmtType),
		nullableStringValue(packet.ClientIP),
		nullableStringValue(packet.SceneID),
		nullableStringValue(packet.RiskInfo),
		nullableStringValue(packet.ConsumeMchID),
		snapshots[0],
		nullableStringValue(packet.SendListID),
		snapshots[1],
		packet.Status,
		packet.Version,
		packet.CreatedAt,
		packet.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrRedPacketAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	packet.ID = uint64(id)
	return nil
}

func (r *RedPacketRepository) UpdateIfVersion(ctx context.Context, packet *entity.RedPacket) error {
	snapshots, err := serializeSnapshots(packet.SendResult, packet.QueryResult)
	if err != nil {
		return err
	}

	query := `
		UPDATE wxpay_red_packets SET
			send_json = ?,
			send_listid = ?,
			query_json = ?,
			status = ?,
			version = version + 1,
			updated_at = ?
		WHERE mch_billno = ? AND version = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		snapshots[0],
		nullableStringValue(packet.SendListID),
		snapshots[1],
		packet.Status,
		packet.UpdatedAt,
		packet.MchBillno,
		packet.Version,
	)
	if err != nil {
		return err
	}
	if err := checkVersionedUpdate(result); err != nil {
		return err
	}

	packet.Version++
	return nil
}

func (r *RedPacketRepository) FindByMchBillno(ctx context.Context, mchBillno string) (*entity.RedPacket, error) {
	query := `SELECT ` + redPacketColumns + `
		FROM wxpay_red_packets
		WHERE mch_billno = ?
		LIMIT 1
	`

	packet := &entity.RedPacket{}
	if err := scanRedPacket(r.db.QueryRowContext(ctx, query, mchBillno), packet); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return packet, nil
}

func (r *RedPacketRepository) ListForReconcile(ctx context.Context, states []string, before time.Time, limit int32) ([]*entity.RedPacket, error) {
	query := `SELECT ` + redPacketColumns + `
		FROM wxpay_red_packets
		WHERE status IN (` + inPlaceholders(len(states)) + `)
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	args := make([]interface{}, 0, len(states)+2)
	for _, state := range states {
		args = append(args, state)
	}
	args = append(args, before, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	packets := make([]*entity.RedPacket, 0)
	for rows.Next() {
		item := &entity.RedPacket{}
		if err := scanRedPacket(rows, item); err != nil {
			return nil, err
		}
		packets = append(packets, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return packets, nil
}

func scanRedPacket(scan rowScanner, packet *entity.RedPacket) error {
	var amtType, clientIP, sceneID, riskInfo, consumeMchID, sendListID sql.NullString
	var sendJSON, queryJSON sql.NullString

	err := scan.Scan(
		&packet.ID,
		&packet.MchBillno,
		&packet.SendName,
		&packet.ReOpenID,
		&packet.TotalAmount,
		&packet.TotalNum,
		&packet.Wishing,
		&packet.ActName,
		&packet.Remark,
		&amtType,
		&clientIP,
		&sceneID,
		&riskInfo,
		&consumeMchID,
		&sendJSON,
		&sendListID,
		&queryJSON,
		&packet.Status,
		&packet.Version,
		&packet.CreatedAt,
		&packet.UpdatedAt,
	)
	if err != nil {
		return err
	}

	packet.AmtType = stringPtrFromNull(amtType)
	packet.ClientIP = stringPtrFromNull(clientIP)
	packet.SceneID = stringPtrFromNull(sceneID)
	packet.RiskInfo = stringPtrFromNull(riskInfo)
	packet.ConsumeMchID = stringPtrFromNull(consumeMchID)
	packet.SendListID = stringPtrFromNull(sendListID)

	if packet.SendResult, err = parseSnapshot(sendJSON); err != nil {
		return err
	}
	if packet.QueryResult, err = parseSnapshot(queryJSON); err != nil {
		return err
	}

	return nil
}
