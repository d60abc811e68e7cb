package sqlinline

// Every generation query returns the same 29 columns in the order scanned by
// repo.scanGeneration.

const QCreateGenerationWithDebit = `--sql e50a3f50-ea47-4c98-9578-8ce4d9de84d0
with
debited as (
  update users
  set video_credits = video_credits - $3::int,
      updated_at = now()
  where id = $2::uuid
    and video_credits >= $3::int
  returning id, video_credits
),
ins as (
  insert into generations (id, user_id, asset_type, status, params, created_at, updated_at)
  select $1::uuid, debited.id, $4::text, 'PENDING', $5::jsonb, now(), now()
  from debited
  returning id, created_at, updated_at
),
ledger as (
  insert into credit_transactions (user_id, type, amount, balance_after, generation_id, description)
  select debited.id, 'usage', -$3::int, debited.video_credits, $1::uuid, 'generation ' || $4::text
  from debited
)
select ins.created_at, ins.updated_at, debited.video_credits
from ins, debited;
`

const QSelectGenerationByID = `--sql 0a378684-50a9-4463-9fd6-aa3981376a99
select
  id::text, user_id::text, asset_type, status, params,
  coalesce(generated_person_url, ''), coalesce(s3_key_person, ''), coalesce(stage1_error, ''),
  coalesce(composite_image_url, ''), coalesce(s3_key_composite, ''), coalesce(stage2_error, ''),
  coalesce(final_video_url, ''), coalesce(video_thumbnail_url, ''), coalesce(s3_key_video, ''),
  coalesce(video_provider, ''), fallback_used, coalesce(stage3_error, ''),
  coalesce(error_type, ''), coalesce(error_message, ''), is_refundable, can_retry, credits_refunded,
  attempt, refunded_attempt, coalesce(current_stage, 0), progress, coalesce(external_execution_id, ''), created_at, updated_at
from generations
where id = $1::uuid;
`

const QSelectGenerationForUser = `--sql 3a57ad52-6139-4e11-b321-93633a86ee60
select
  id::text, user_id::text, asset_type, status, params,
  coalesce(generated_person_url, ''), coalesce(s3_key_person, ''), coalesce(stage1_error, ''),
  coalesce(composite_image_url, ''), coalesce(s3_key_composite, ''), coalesce(stage2_error, ''),
  coalesce(final_video_url, ''), coalesce(video_thumbnail_url, ''), coalesce(s3_key_video, ''),
  coalesce(video_provider, ''), fallback_used, coalesce(stage3_error, ''),
  coalesce(error_type, ''), coalesce(error_message, ''), is_refundable, can_retry, credits_refunded,
  attempt, refunded_attempt, coalesce(current_stage, 0), progress, coalesce(external_execution_id, ''), created_at, updated_at
from generations
where id = $1::uuid
  and user_id = $2::uuid;
`

const QListGenerations = `--sql 80d9b90e-ad89-4c6e-8b62-ad650df0f32b
select
  id::text, user_id::text, asset_type, status, params,
  coalesce(generated_person_url, ''), coalesce(s3_key_person, ''), coalesce(stage1_error, ''),
  coalesce(composite_image_url, ''), coalesce(s3_key_composite, ''), coalesce(stage2_error, ''),
  coalesce(final_video_url, ''), coalesce(video_thumbnail_url, ''), coalesce(s3_key_video, ''),
  coalesce(video_provider, ''), fallback_used, coalesce(stage3_error, ''),
  coalesce(error_type, ''), coalesce(error_message, ''), is_refundable, can_retry, credits_refunded,
  attempt, refunded_attempt, coalesce(current_stage, 0), progress, coalesce(external_execution_id, ''), created_at, updated_at
from generations
where user_id = $1::uuid
  and status in ('COMPLETED', 'FAILED')
  and ($2::text = '' or asset_type = $2::text)
order by created_at desc, id desc
limit $3::int offset $4::int;
`

const QCountGenerations = `--sql 9d8a4978-e9b6-4201-bc96-9e8714ec0c26
select count(*)::int
from generations
where user_id = $1::uuid
  and status in ('COMPLETED', 'FAILED')
  and ($2::text = '' or asset_type = $2::text);
`

const QSelectMostRecentPending = `--sql 4d5fa957-9137-476e-ba2a-fee756b66b09
select
  id::text, user_id::text, asset_type, status, params,
  coalesce(generated_person_url, ''), coalesce(s3_key_person, ''), coalesce(stage1_error, ''),
  coalesce(composite_image_url, ''), coalesce(s3_key_composite, ''), coalesce(stage2_error, ''),
  coalesce(final_video_url, ''), coalesce(video_thumbnail_url, ''), coalesce(s3_key_video, ''),
  coalesce(video_provider, ''), fallback_used, coalesce(stage3_error, ''),
  coalesce(error_type, ''), coalesce(error_message, ''), is_refundable, can_retry, credits_refunded,
  attempt, refunded_attempt, coalesce(current_stage, 0), progress, coalesce(external_execution_id, ''), created_at, updated_at
from generations
where user_id = $1::uuid
  and asset_type = $2::text
  and status = 'PENDING'
order by created_at desc
limit 1;
`

const QListCompletedVideos = `--sql df3b0246-8aff-4c0b-acab-fa9a3d0917c9
select
  id::text, user_id::text, asset_type, status, params,
  coalesce(generated_person_url, ''), coalesce(s3_key_person, ''), coalesce(stage1_error, ''),
  coalesce(composite_image_url, ''), coalesce(s3_key_composite, ''), coalesce(stage2_error, ''),
  coalesce(final_video_url, ''), coalesce(video_thumbnail_url, ''), coalesce(s3_key_video, ''),
  coalesce(video_provider, ''), fallback_used, coalesce(stage3_error, ''),
  coalesce(error_type, ''), coalesce(error_message, ''), is_refundable, can_retry, credits_refunded,
  attempt, refunded_attempt, coalesce(current_stage, 0), progress, coalesce(external_execution_id, ''), created_at, updated_at
from generations
where user_id = $1::uuid
  and asset_type in ('VIDEO', 'FULL_PIPELINE')
  and status = 'COMPLETED'
  and final_video_url is not null
order by created_at desc
limit $2::int;
`

const QSaveGeneration = `--sql d08fd44a-2d86-4166-aa8d-0b2358ae1da5
update generations
set status = $3::text,
    generated_person_url = nullif($4::text, ''),
    s3_key_person = nullif($5::text, ''),
    stage1_error = nullif($6::text, ''),
    composite_image_url = nullif($7::text, ''),
    s3_key_composite = nullif($8::text, ''),
    stage2_error = nullif($9::text, ''),
    final_video_url = nullif($10::text, ''),
    video_thumbnail_url = nullif($11::text, ''),
    s3_key_video = nullif($12::text, ''),
    video_provider = nullif($13::text, ''),
    fallback_used = $14::boolean,
    stage3_error = nullif($15::text, ''),
    error_type = nullif($16::text, ''),
    error_message = nullif($17::text, ''),
    is_refundable = $18::boolean,
    can_retry = $19::boolean,
    current_stage = nullif($20::int, 0),
    progress = $21::int,
    external_execution_id = nullif($22::text, ''),
    updated_at = greatest(clock_timestamp(), updated_at + interval '1 microsecond')
where id = $1::uuid
  and updated_at = $2::timestamptz
returning updated_at;
`

const QCompleteGeneration = `--sql 77c4a8c9-1486-4156-86e7-be7f5cdb8567
update generations
set status = 'COMPLETED',
    progress = 100,
    generated_person_url = coalesce(nullif($2::text, ''), generated_person_url),
    s3_key_person = coalesce(nullif($3::text, ''), s3_key_person),
    composite_image_url = coalesce(nullif($4::text, ''), composite_image_url),
    s3_key_composite = coalesce(nullif($5::text, ''), s3_key_composite),
    final_video_url = coalesce(nullif($6::text, ''), final_video_url),
    s3_key_video = coalesce(nullif($7::text, ''), s3_key_video),
    video_thumbnail_url = coalesce(nullif($8::text, ''), video_thumbnail_url),
    video_provider = coalesce(nullif($9::text, ''), video_provider),
    fallback_used = $10::boolean,
    updated_at = greatest(clock_timestamp(), updated_at + interval '1 microsecond')
where id = $1::uuid
  and status in ('PENDING', 'PROCESSING');
`

const QMarkGenerationFailed = `--sql 9b936ea3-46ba-493e-8fb4-b9746ad8550b
update generations
set status = 'FAILED',
    error_type = $2::text,
    error_message = $3::text,
    is_refundable = $4::boolean,
    can_retry = true,
    stage1_error = case when $5::int = 1 then $3::text else stage1_error end,
    stage2_error = case when $5::int = 2 then $3::text else stage2_error end,
    stage3_error = case when $5::int = 3 then $3::text else stage3_error end,
    updated_at = greatest(clock_timestamp(), updated_at + interval '1 microsecond')
where id = $1::uuid
  and status = any($6::text[]);
`

const QRefundGeneration = `--sql 56e845e2-1cec-41db-8dbf-43b5b794442b
with
target as (
  update generations
  set credits_refunded = true,
      refunded_attempt = attempt,
      updated_at = greatest(clock_timestamp(), updated_at + interval '1 microsecond')
  where id = $1::uuid
    and status = 'FAILED'
    and is_refundable
    and refunded_attempt < attempt
  returning id, user_id
),
credited as (
  update users u
  set video_credits = u.video_credits + $2::int,
      updated_at = now()
  from target
  where u.id = target.user_id
  returning u.id, u.video_credits
),
ledger as (
  insert into credit_transactions (user_id, type, amount, balance_after, generation_id, description)
  select credited.id, 'refund', $2::int, credited.video_credits, target.id, 'refund generation'
  from credited, target
)
select count(*)::int from credited;
`

// QRetryGeneration starts a new attempt of a failed job. A refund still due
// for the failed attempt ($4) is settled against the new debit ($3) in the
// same statement.
const QRetryGeneration = `--sql 88b299f6-e799-4dca-be39-a1e3446332aa
with
target as (
  select id, user_id,
         case when is_refundable and refunded_attempt < attempt then $4::int else 0 end as refund
  from generations
  where id = $1::uuid
    and user_id = $2::uuid
    and status = 'FAILED'
    and can_retry
  for update
),
reset as (
  update generations g
  set status = 'PENDING',
      error_type = null,
      error_message = null,
      is_refundable = false,
      can_retry = false,
      credits_refunded = g.credits_refunded or target.refund > 0,
      refunded_attempt = case when target.refund > 0 then g.attempt else g.refunded_attempt end,
      attempt = g.attempt + 1,
      stage1_error = null,
      stage2_error = null,
      stage3_error = null,
      current_stage = null,
      progress = 0,
      updated_at = greatest(clock_timestamp(), g.updated_at + interval '1 microsecond')
  from target
  where g.id = target.id
  returning g.*
),
charged as (
  update users u
  set video_credits = u.video_credits + target.refund - $3::int,
      updated_at = now()
  from target, reset
  where u.id = target.user_id
  returning u.id, u.video_credits
),
ledger as (
  insert into credit_transactions (user_id, type, amount, balance_after, generation_id, description)
  select charged.id, 'refund', target.refund, charged.video_credits + $3::int, $1::uuid, 'refund generation'
  from charged, target
  where target.refund > 0
  union all
  select charged.id, 'usage', -$3::int, charged.video_credits, $1::uuid, 'retry generation'
  from charged
)
select
  id::text, user_id::text, asset_type, status, params,
  coalesce(generated_person_url, ''), coalesce(s3_key_person, ''), coalesce(stage1_error, ''),
  coalesce(composite_image_url, ''), coalesce(s3_key_composite, ''), coalesce(stage2_error, ''),
  coalesce(final_video_url, ''), coalesce(video_thumbnail_url, ''), coalesce(s3_key_video, ''),
  coalesce(video_provider, ''), fallback_used, coalesce(stage3_error, ''),
  coalesce(error_type, ''), coalesce(error_message, ''), is_refundable, can_retry, credits_refunded,
  attempt, refunded_attempt, coalesce(current_stage, 0), progress, coalesce(external_execution_id, ''), created_at, updated_at
from reset;
`

const QListStalePending = `--sql b25dd381-b628-4838-91f9-da45dd289cee
select
  id::text, user_id::text, asset_type, status, params,
  coalesce(generated_person_url, ''), coalesce(s3_key_person, ''), coalesce(stage1_error, ''),
  coalesce(composite_image_url, ''), coalesce(s3_key_composite, ''), coalesce(stage2_error, ''),
  coalesce(final_video_url, ''), coalesce(video_thumbnail_url, ''), coalesce(s3_key_video, ''),
  coalesce(video_provider, ''), fallback_used, coalesce(stage3_error, ''),
  coalesce(error_type, ''), coalesce(error_message, ''), is_refundable, can_retry, credits_refunded,
  attempt, refunded_attempt, coalesce(current_stage, 0), progress, coalesce(external_execution_id, ''), created_at, updated_at
from generations
where status = 'PENDING'
  and updated_at < $1::timestamptz
order by updated_at
limit $2::int;
`

const QListRefundable = `--sql 1f9df025-dc3b-4c76-a2bb-a2fe0f2f57ee
select
  id::text, user_id::text, asset_type, status, params,
  coalesce(generated_person_url, ''), coalesce(s3_key_person, ''), coalesce(stage1_error, ''),
  coalesce(composite_image_url, ''), coalesce(s3_key_composite, ''), coalesce(stage2_error, ''),
  coalesce(final_video_url, ''), coalesce(video_thumbnail_url, ''), coalesce(s3_key_video, ''),
  coalesce(video_provider, ''), fallback_used, coalesce(stage3_error, ''),
  coalesce(error_type, ''), coalesce(error_message, ''), is_refundable, can_retry, credits_refunded,
  attempt, refunded_attempt, coalesce(current_stage, 0), progress, coalesce(external_execution_id, ''), created_at, updated_at
from generations
where status = 'FAILED'
  and is_refundable
  and refunded_attempt < attempt
order by updated_at
limit $1::int;
`
